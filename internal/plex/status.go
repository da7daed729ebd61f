// ABOUTME: Server status endpoints: bandwidth, resources, butler tasks, activities, logs.
// ABOUTME: Log archives from /diagnostics/logs are unpacked with klauspost/compress/zip.

package plex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Timespans maps statistics granularity names to the server's codes.
var Timespans = map[string]int{
	"months":  1,
	"weeks":   2,
	"days":    3,
	"hours":   4,
	"seconds": 6,
}

// Bandwidth returns bandwidth buckets plus the devices and accounts they refer to.
func (s *Server) Bandwidth(ctx context.Context, timespan string) (*MediaContainer, error) {
	code, ok := Timespans[timespan]
	if !ok {
		return nil, fmt.Errorf("unknown timespan %q", timespan)
	}
	query := url.Values{}
	query.Set("timespan", strconv.Itoa(code))
	return s.get(ctx, "/statistics/bandwidth", query)
}

// Resources returns recent host and process utilization samples.
func (s *Server) Resources(ctx context.Context) ([]ResourceStat, error) {
	query := url.Values{}
	query.Set("timespan", strconv.Itoa(Timespans["seconds"]))
	mc, err := s.get(ctx, "/statistics/resources", query)
	if err != nil {
		return nil, err
	}
	return mc.StatisticsResources, nil
}

// ButlerTasks lists the scheduled maintenance tasks.
func (s *Server) ButlerTasks(ctx context.Context) ([]ButlerTask, error) {
	var env struct {
		ButlerTasks struct {
			ButlerTask []ButlerTask `json:"ButlerTask"`
		} `json:"ButlerTasks"`
	}
	if err := s.decode(ctx, http.MethodGet, "/butler", nil, &env); err != nil {
		return nil, err
	}
	return env.ButlerTasks.ButlerTask, nil
}

// RunButlerTask starts a maintenance task now.
func (s *Server) RunButlerTask(ctx context.Context, name string) error {
	return s.send(ctx, http.MethodPost, "/butler/"+url.PathEscape(name), nil)
}

// Activities lists running background jobs.
func (s *Server) Activities(ctx context.Context) ([]Activity, error) {
	mc, err := s.get(ctx, "/activities", nil)
	if err != nil {
		return nil, err
	}
	return mc.Activity, nil
}

// LogFile is one file from the server's log archive.
type LogFile struct {
	Name    string
	Content string
}

// Logs downloads the log archive and returns its .log files sorted by name.
func (s *Server) Logs(ctx context.Context) ([]LogFile, error) {
	data, err := s.raw(ctx, http.MethodGet, "/diagnostics/logs", nil, nil)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening log archive: %w", err)
	}

	var files []LogFile
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".log") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		files = append(files, LogFile{Name: f.Name, Content: string(content)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
