package usecase

import (
	"fmt"
	"strings"
	"time"

	"IntelRadar/internal/domain"
)

const defaultSubjectPrefix = "【半導體監測報】自動掃描完成"

// BuildDigest renders the run delta into one plain-text message.
func BuildDigest(records []domain.IntelligenceRecord, capturedAt time.Time, subjectPrefix string) domain.Digest {
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}

	var b strings.Builder
	fmt.Fprintf(&b, "今日情報掃描任務已完成，本次新增 %d 筆情報。\n\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(&b, "- %s\n  技術聚類：%s\n  產業趨勢：%s\n  %s\n\n",
			rec.ArticleTitle,
			rec.TechCluster,
			rec.IndustryTrend,
			rec.SourceURL)
	}

	return domain.Digest{
		Subject: fmt.Sprintf("%s - %s", subjectPrefix, capturedAt.Format("2006-01-02")),
		Body:    strings.TrimRight(b.String(), "\n") + "\n",
		Records: records,
	}
}
