package feed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/halcyonlab/halcyon/pkg/errors"
	"github.com/halcyonlab/halcyon/internal/types"
)

// LoadCSV reads bars from a CSV file with a header row. Recognized columns:
// symbol, time, open, high, low, close, volume. Time accepts RFC 3339 or unix
// seconds. Rows keep file order; ordering problems surface later as data
// errors from the replay loop, not here.
func LoadCSV(path string) ([]types.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataReadFailed, err, "failed to open CSV file %s", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataReadFailed, err, "failed to read CSV header from %s", path)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range []string{"time", "open", "high", "low", "close"} {
		if _, ok := col[required]; !ok {
			return nil, errors.Newf(errors.ErrCodeDataReadFailed, "CSV file %s is missing column %q", path, required)
		}
	}

	var bars []types.Bar

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeDataReadFailed, err, "failed to read CSV row at line %d", line)
		}

		bar, err := parseBar(record, col)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeDataReadFailed, err, "failed to parse CSV row at line %d", line)
		}

		bars = append(bars, bar)
	}

	return bars, nil
}

func parseBar(record []string, col map[string]int) (types.Bar, error) {
	field := func(name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}

		return strings.TrimSpace(record[idx])
	}

	barTime, err := parseTime(field("time"))
	if err != nil {
		return types.Bar{}, err
	}

	bar := types.Bar{
		Symbol: field("symbol"),
		Time:   barTime,
	}

	for name, dst := range map[string]*float64{
		"open":   &bar.Open,
		"high":   &bar.High,
		"low":    &bar.Low,
		"close":  &bar.Close,
		"volume": &bar.Volume,
	} {
		raw := field(name)
		if raw == "" && name == "volume" {
			continue
		}

		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.Bar{}, errors.Newf(errors.ErrCodeDataReadFailed, "invalid %s value %q", name, raw)
		}

		*dst = value
	}

	return bar, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New(errors.ErrCodeDataReadFailed, "empty time value")
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}

	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}

	return time.Time{}, errors.Newf(errors.ErrCodeDataReadFailed, "unrecognized time value %q", raw)
}
