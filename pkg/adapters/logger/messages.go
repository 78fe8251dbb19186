package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Session (debug)
		"Opened %s decoder with %d threads":               "%s デコーダを %d スレッドで開きました",
		"Decoder closed":                                  "デコーダを閉じました",
		"Decoder flushed":                                 "デコーダをフラッシュしました",
		"Sent %d bytes":                                   "%d バイトを送信しました",
		"Engine rejected %d bytes":                        "エンジンが %d バイトを受け付けませんでした",
		"Cannot allocate %d byte input buffer: %s":        "%d バイトの入力バッファを確保できません: %s",
		"Picture %dx%d ready":                             "ピクチャ %dx%d の準備ができました",
		"Decode fault after %d pictures, discarding them": "%d ピクチャの後にデコードエラー。破棄します",

		// Player (info)
		"Decoding %s (%s, %dx%d) with %s":   "%s をデコード中 (%s, %dx%d) エンジン: %s",
		"Decoded %d pictures from %d units": "%d ユニットから %d ピクチャをデコードしました",
		"Stopped after %d pictures":         "%d ピクチャで停止しました",
		"Draining delayed pictures":         "遅延中のピクチャを取り出しています",

		// Player (warnings)
		"Unit %d rejected by decoder, skipping":     "ユニット %d がデコーダに拒否されました。スキップします",
		"Decode fault at unit %d, flushing decoder": "ユニット %d でデコードエラー。デコーダをフラッシュします",
		"Decode fault at unit %d":                   "ユニット %d でデコードエラー",

		// Errors
		"Failed to write picture %d: %s": "ピクチャ %d の書き込みに失敗しました: %s",
		"Failed to read unit: %s":        "ユニットの読み込みに失敗しました: %s",
	})
}
