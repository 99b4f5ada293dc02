package transform

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

var errEmptyTimestamp = errors.New("пустое значение")

// timestampParser разбирает текстовые метки времени в часовом поясе источника
type timestampParser struct {
	loc     *time.Location
	layouts []string
}

func newTimestampParser(timezone string, layouts []string) (timestampParser, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return timestampParser{}, fmt.Errorf("неизвестный часовой пояс %q: %w", timezone, err)
	}
	if len(layouts) == 0 {
		return timestampParser{}, errors.New("не задан ни один формат времени")
	}
	return timestampParser{loc: loc, layouts: layouts}, nil
}

// parse возвращает абсолютный момент времени в UTC
func (p timestampParser) parse(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errEmptyTimestamp
	}

	var lastErr error
	for _, layout := range p.layouts {
		t, err := time.ParseInLocation(layout, value, p.loc)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
