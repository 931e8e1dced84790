package transcribe

import (
	"fmt"
	"strings"

	"github.com/hitoshi/talktome/internal/openai"
)

// speakerGapSeconds は話者交代とみなすセグメント間の無音秒数。
// 前のセグメントの終了から次のセグメントの開始までがこれを超えた場合、
// 2話者が交互に話しているとみなして話者ラベルを切り替える。
const speakerGapSeconds = 1.5

// LabelSpeakers はセグメント列に2話者交互のヒューリスティックで
// 話者ラベルを付与し、1セグメント1行のトランスクリプトを返す。
// 最初のセグメントはSpeaker 1に割り当てられる。
func LabelSpeakers(segments []openai.Segment) string {
	if len(segments) == 0 {
		return ""
	}

	speaker := 1
	lines := make([]string, 0, len(segments))

	for i, seg := range segments {
		if i > 0 && seg.Start-segments[i-1].End > speakerGapSeconds {
			if speaker == 1 {
				speaker = 2
			} else {
				speaker = 1
			}
		}
		lines = append(lines, fmt.Sprintf("Speaker %d: %s", speaker, strings.TrimSpace(seg.Text)))
	}

	return strings.Join(lines, "\n")
}
