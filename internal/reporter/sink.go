package reporter

import (
	"errors"
	"fmt"
	"grid-trader-go/internal/models"
	"io"
	"os"
	"strings"
)

// LineSink 以追加方式把下单和成交写成一行一条的文本记录
type LineSink struct {
	w      io.Writer
	closer io.Closer
}

// NewLineSink 包装任意 io.Writer
func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

// OpenLineSink 以追加模式打开记录文件
func OpenLineSink(path string) (*LineSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("无法打开记录文件 %s: %w", path, err)
	}
	return &LineSink{w: f, closer: f}, nil
}

func (s *LineSink) RecordPlacement(e models.PlacementEvent) error {
	_, err := fmt.Fprintf(s.w, "New %s order placed at grid level %v (Price: %v, Quantity: %v)\n",
		e.Side, e.Level.Price, e.Price, e.Quantity)
	return err
}

func (s *LineSink) RecordFill(e models.FillEvent) error {
	_, err := fmt.Fprintf(s.w, "%s executed: Price: %v, Quantity: %v, PnL: %v\n",
		capitalize(string(e.Side)), e.Price, e.Quantity, e.RealizedPnL)
	return err
}

func (s *LineSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// MultiSink 把事件转发给多个 sink，某个 sink 失败不影响其他 sink
type MultiSink []interface {
	RecordPlacement(models.PlacementEvent) error
	RecordFill(models.FillEvent) error
}

func (m MultiSink) RecordPlacement(e models.PlacementEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordPlacement(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) RecordFill(e models.FillEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordFill(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
