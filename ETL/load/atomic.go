package load

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// stagedFile - записанный временный файл и путь, под которым он будет опубликован
type stagedFile struct {
	tmp  string
	path string
}

// fileBatch собирает файлы одного запуска во временных путях.
// Целевые файлы появляются только после commit; rollback удаляет всё записанное.
type fileBatch struct {
	staged []stagedFile
}

// stage пишет файл во временный файл рядом с целевым
func (b *fileBatch) stage(path string, write func(w *bufio.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("не удалось создать каталог %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("не удалось создать временный файл: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err = write(buf); err != nil {
		return err
	}
	if err = buf.Flush(); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", path, err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия %s: %w", path, err)
	}

	b.staged = append(b.staged, stagedFile{tmp: tmp.Name(), path: path})
	return nil
}

// commit переименовывает временные файлы в целевые.
// Если переименование не удалось, уже опубликованные файлы этого запуска удаляются.
func (b *fileBatch) commit() error {
	for i, f := range b.staged {
		if err := os.Rename(f.tmp, f.path); err != nil {
			for _, done := range b.staged[:i] {
				os.Remove(done.path)
			}
			b.staged = b.staged[i:]
			b.rollback()
			return fmt.Errorf("не удалось переименовать временный файл в %s: %w", f.path, err)
		}
	}
	b.staged = nil
	return nil
}

// rollback удаляет временные файлы, не затрагивая целевые
func (b *fileBatch) rollback() {
	for _, f := range b.staged {
		os.Remove(f.tmp)
	}
	b.staged = nil
}

// commitStaged выполняет stage и сразу публикует результат (для автономного вызова приёмника)
func commitStaged(stage func(*fileBatch) error) error {
	batch := &fileBatch{}
	if err := stage(batch); err != nil {
		batch.rollback()
		return err
	}
	return batch.commit()
}
