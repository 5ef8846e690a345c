package analytics

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/PratikDhanave/machine-events-service/internal/models"
)

const (
	StatusHealthy = "Healthy"
	StatusWarning = "Warning"

	// warningRate is the defects-per-hour rate at which a machine stops being healthy.
	warningRate = 2.0

	DefaultTopLinesLimit = 10
	MaxTopLinesLimit     = 100
)

// ErrInvalidWindow is returned when a window does not satisfy from < to.
var ErrInvalidWindow = errors.New("window start must be before end")

// Reader is the read side of the event store. Windows are half-open [from, to)
// on event time.
type Reader interface {
	EventsForMachine(ctx context.Context, machineID string, from, to time.Time) ([]models.Event, error)
	EventsInWindow(ctx context.Context, from, to time.Time) ([]models.Event, error)
}

// Service computes reports over already-merged events.
type Service struct {
	reader Reader
}

func NewService(r Reader) *Service {
	return &Service{reader: r}
}

// MachineStats counts a machine's events and defects in [start, end).
// Events with an unknown defect count (-1) are counted but add no defects.
func (s *Service) MachineStats(ctx context.Context, machineID string, start, end time.Time) (models.MachineStats, error) {
	if !start.Before(end) {
		return models.MachineStats{}, ErrInvalidWindow
	}

	events, err := s.reader.EventsForMachine(ctx, machineID, start, end)
	if err != nil {
		return models.MachineStats{}, err
	}

	var defects int64
	for _, e := range events {
		if e.DefectCount >= 0 {
			defects += int64(e.DefectCount)
		}
	}

	rate := round(float64(defects)/end.Sub(start).Hours(), 1)

	status := StatusHealthy
	if rate >= warningRate {
		status = StatusWarning
	}

	return models.MachineStats{
		MachineID:     machineID,
		Start:         start,
		End:           end,
		EventsCount:   int64(len(events)),
		DefectsCount:  defects,
		AvgDefectRate: rate,
		Status:        status,
	}, nil
}

// TopDefectLines ranks production lines by total defects in [from, to).
// Events without a line are skipped; only positive defect counts are summed.
func (s *Service) TopDefectLines(ctx context.Context, from, to time.Time, limit int) ([]models.TopDefectLine, error) {
	if !from.Before(to) {
		return nil, ErrInvalidWindow
	}
	limit = clampLimit(limit)

	events, err := s.reader.EventsInWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byLine := map[string]*models.TopDefectLine{}
	for _, e := range events {
		if e.LineID == "" {
			continue
		}
		row, ok := byLine[e.LineID]
		if !ok {
			row = &models.TopDefectLine{LineID: e.LineID}
			byLine[e.LineID] = row
		}
		row.EventCount++
		if e.DefectCount > 0 {
			row.TotalDefects += int64(e.DefectCount)
		}
	}

	out := make([]models.TopDefectLine, 0, len(byLine))
	for _, row := range byLine {
		row.DefectsPercent = round(float64(row.TotalDefects)/float64(row.EventCount)*100, 2)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDefects != out[j].TotalDefects {
			return out[i].TotalDefects > out[j].TotalDefects
		}
		return out[i].LineID < out[j].LineID
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultTopLinesLimit
	case limit > MaxTopLinesLimit:
		return MaxTopLinesLimit
	default:
		return limit
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
