package recorder

import (
	"os"

	"github.com/goccy/go-json"
)

// JSON 文件记录器，逐行追加写入（JSONL）
type JSONFileRecorder struct {
	Path string
}

func NewJSONFileRecorder(path string) *JSONFileRecorder {
	return &JSONFileRecorder{
		path,
	}
}

func (r *JSONFileRecorder) Record(result any) error {
	file, err := os.OpenFile(r.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	data = append(data, '\n')
	_, err = file.Write(data)
	return err
}

// RecordAll 按顺序写入一批结果
func (r *JSONFileRecorder) RecordAll(results []any) error {
	for _, res := range results {
		if err := r.Record(res); err != nil {
			return err
		}
	}
	return nil
}
