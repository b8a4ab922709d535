package collate

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"timetable-collator/internal/model"
)

// MapExams 校验考试记录并转为 模块代码 → ExamInfo
// 日期时间按 loc 解释后以 RFC3339 UTC 输出；无效记录记录日志后丢弃
func MapExams(exams []model.RawExam, loc *time.Location, logger *zap.Logger) map[string]model.ExamInfo {
	validate := validator.New()
	out := make(map[string]model.ExamInfo, len(exams))
	for _, exam := range exams {
		exam.Module = strings.TrimSpace(exam.Module)
		info, err := examInfo(validate, exam, loc)
		if err != nil {
			logger.Warn("考试记录无效，已丢弃", zap.String("module", exam.Module), zap.Error(err))
			continue
		}
		if prev, ok := out[exam.Module]; ok && prev != info {
			logger.Warn("模块存在多条考试记录，保留第一条",
				zap.String("module", exam.Module),
				zap.String("kept", prev.ExamDate),
				zap.String("ignored", info.ExamDate),
			)
			continue
		}
		out[exam.Module] = info
	}
	return out
}

func examInfo(validate *validator.Validate, exam model.RawExam, loc *time.Location) (model.ExamInfo, error) {
	if err := validate.Struct(exam); err != nil {
		return model.ExamInfo{}, err
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", exam.ExamDate+" "+exam.StartTime, loc)
	if err != nil {
		return model.ExamInfo{}, fmt.Errorf("考试时间无效: %w", err)
	}
	return model.ExamInfo{
		ExamDate:     t.UTC().Format(time.RFC3339),
		ExamDuration: exam.Duration,
	}, nil
}
