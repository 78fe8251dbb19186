// Package main provides localization for the av1dec CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Decode AV1 streams with dav1d or libaom.": "dav1d または libaom で AV1 ストリームをデコードします。",

		// Decode command
		"Interrupted, shutting down...":       "中断されました。終了しています...",
		"%d units rejected, %d decode faults": "%d ユニットが拒否され、%d 回のデコードエラーが発生しました",
		"Output saved to %s":                  "出力を %s に保存しました",

		"Summary saved to %s": "サマリーを %s に保存しました",

		// Decode summary
		"Decode Summary":  "デコードサマリー",
		"Input":           "入力",
		"Decoder":         "デコーダ",
		"Result":          "結果",
		"Item":            "項目",
		"Value":           "値",
		"File":            "ファイル",
		"Container":       "コンテナ",
		"Codec":           "コーデック",
		"Size":            "サイズ",
		"Timescale":       "タイムスケール",
		"Units":           "ユニット数",
		"Engine":          "エンジン",
		"Threads":         "スレッド数",
		"Max Frame Delay": "最大フレーム遅延",
		"Film Grain":      "フィルムグレイン",
		"Units Submitted": "投入ユニット数",
		"Pictures":        "ピクチャ数",
		"Rejected Units":  "拒否ユニット数",
		"Decode Faults":   "デコードエラー数",
		"Elapsed":         "経過時間",
		"Throughput":      "スループット",
		"Output":          "出力",
		"Generated at":    "生成日時",
		"auto":            "自動",
		"Yes":             "はい",
		"No":              "いいえ",

		// Probe command
		"Container: %s":         "コンテナ: %s",
		"Codec: %s":             "コーデック: %s",
		"Size: %dx%d":           "サイズ: %dx%d",
		"Timescale: %d":         "タイムスケール: %d",
		"Units: %d":             "ユニット数: %d",
		"Config OBUs: %d bytes": "設定 OBU: %d バイト",

		// Synth command
		"Wrote %d frames to %s": "%d フレームを %s に書き込みました",

		// Version command
		"av1dec version %s": "av1dec バージョン %s",
	})
}
