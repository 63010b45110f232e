package session

import "fmt"

const (
	messagePoweredByLine = "-# *Powered by [Kikitori](https://github.com/foxseedlab/kikitori)*"

	messageCompleteTitle   = ":page_facing_up:  **文字起こしが完了しました。**"
	messageEmptyTitle      = ":mute:  **音声が記録されていなかったため、文字起こしはありません。**"
	messageFailedTitle     = ":warning: **文字起こしに失敗しました。**"
	messageSessionIDFormat = "-# セッション ID: `%s`"
)

func completionTitle(state, text string) string {
	switch {
	case state == StateFailed.String():
		return messageFailedTitle
	case text == "":
		return messageEmptyTitle
	default:
		return messageCompleteTitle
	}
}

func sessionIDLine(sessionID string) string {
	return fmt.Sprintf(messageSessionIDFormat, sessionID)
}

func failureDetail(stage string) string {
	switch stage {
	case "artifact":
		return "録音データの保存に失敗しました。"
	case "transcode", "decode":
		return "録音データの変換に失敗しました。"
	case "transcribe":
		return "音声認識サービスの呼び出しに失敗しました。"
	default:
		return "不明なエラーが発生しました。"
	}
}
