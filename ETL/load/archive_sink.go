package load

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/golang/snappy"

	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// ArchiveLoader сохраняет факты в сжатый snappy поток JSON Lines
type ArchiveLoader struct {
	outputDir string
	logger    *utils.ETLLogger
}

// NewArchiveLoader создает новый экземпляр ArchiveLoader
func NewArchiveLoader(outputDir string, logger *utils.ETLLogger) *ArchiveLoader {
	return &ArchiveLoader{
		outputDir: outputDir,
		logger:    logger,
	}
}

// Name возвращает имя приёмника
func (l *ArchiveLoader) Name() string {
	return "archive"
}

// Load записывает архив фактов
func (l *ArchiveLoader) Load(data *models.TransformedData) error {
	return commitStaged(func(batch *fileBatch) error { return l.stage(data, batch) })
}

func (l *ArchiveLoader) stage(data *models.TransformedData, batch *fileBatch) error {
	path := filepath.Join(l.outputDir, FactsArchive)

	var rawSize int
	err := batch.stage(path, func(w *bufio.Writer) error {
		zw := snappy.NewBufferedWriter(w)
		counter := &countingWriter{w: zw}
		enc := json.NewEncoder(counter)
		for _, fact := range data.Facts {
			if err := enc.Encode(NewFactRecord(fact)); err != nil {
				zw.Close()
				return fmt.Errorf("ошибка кодирования факта %s: %w", fact.EventID, err)
			}
		}
		rawSize = counter.n
		return zw.Close()
	})
	if err != nil {
		return fmt.Errorf("ошибка записи архива %s: %w", path, err)
	}

	l.logger.Info("Архив фактов подготовлен в %s (%d записей, %d байт до сжатия)", path, len(data.Facts), rawSize)
	return nil
}

// ReadArchive читает факты из архива, записанного ArchiveLoader
func ReadArchive(r io.Reader) ([]FactRecord, error) {
	dec := json.NewDecoder(snappy.NewReader(r))
	var records []FactRecord
	for {
		var record FactRecord
		err := dec.Decode(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения архива: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
