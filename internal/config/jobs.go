package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/user/pingwatch/internal/model"
)

// ErrNoValidJobs is returned when the schedule file yields no usable
// job definitions. The daemon refuses to start in that case.
var ErrNoValidJobs = errors.New("no valid jobs in schedule file")

const jobSectionPrefix = "job:"

var allowedJobKeys = map[string]struct{}{
	"ip_file":      {},
	"source_query": {},
	"schedule":     {},
	"timeout":      {},
	"count":        {},
	"workers":      {},
}

// JobDefinition is one named probe job from the schedule file.
// Exactly one of IPFile and QueryFile is set.
type JobDefinition struct {
	Name      string
	IPFile    string // host list file
	QueryFile string // SQL query file for the query-backed source
	Schedule  string // 5-field cron expression
	Params    model.ProbeParams
}

// LoadJobs parses the INI schedule file. Each [job:NAME] section
// needs a schedule and a host source (ip_file or source_query);
// timeout, count and workers override the given defaults. A
// malformed section is logged and skipped so one bad job cannot take
// down the rest; zero valid jobs is ErrNoValidJobs.
func LoadJobs(path string, defaults model.ProbeParams, log *zap.Logger) ([]JobDefinition, error) {
	if log == nil {
		log = zap.NewNop()
	}
	defaults = defaults.Normalized()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read schedule file %s: %w", path, err)
	}

	names := jobSectionNames(v)
	var jobs []JobDefinition
	for _, name := range names {
		job, err := parseJobSection(v, name, defaults)
		if err != nil {
			log.Error("skipping invalid job",
				zap.String("job", name),
				zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}

	if len(jobs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoValidJobs)
	}
	return jobs, nil
}

func jobSectionNames(v *viper.Viper) []string {
	seen := make(map[string]struct{})
	for _, key := range v.AllKeys() {
		section, _, ok := strings.Cut(key, ".")
		if !ok || !strings.HasPrefix(section, jobSectionPrefix) {
			continue
		}
		seen[strings.TrimPrefix(section, jobSectionPrefix)] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseJobSection(v *viper.Viper, name string, defaults model.ProbeParams) (JobDefinition, error) {
	sub := v.Sub(jobSectionPrefix + name)
	if sub == nil {
		return JobDefinition{}, fmt.Errorf("empty job section")
	}

	for _, key := range sub.AllKeys() {
		if _, ok := allowedJobKeys[key]; !ok {
			return JobDefinition{}, fmt.Errorf("unknown key %q", key)
		}
	}

	job := JobDefinition{
		Name:      name,
		IPFile:    sub.GetString("ip_file"),
		QueryFile: sub.GetString("source_query"),
		Schedule:  sub.GetString("schedule"),
		Params:    defaults,
	}

	if job.Schedule == "" {
		return JobDefinition{}, fmt.Errorf("missing required key %q", "schedule")
	}
	if fields := strings.Fields(job.Schedule); len(fields) != 5 {
		return JobDefinition{}, fmt.Errorf("invalid cron schedule %q (expected 5 fields)", job.Schedule)
	}
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return JobDefinition{}, fmt.Errorf("invalid cron schedule %q: %w", job.Schedule, err)
	}

	switch {
	case job.IPFile == "" && job.QueryFile == "":
		return JobDefinition{}, fmt.Errorf("missing host source (ip_file or source_query)")
	case job.IPFile != "" && job.QueryFile != "":
		return JobDefinition{}, fmt.Errorf("ip_file and source_query are mutually exclusive")
	}

	if sub.IsSet("timeout") {
		secs := sub.GetInt("timeout")
		if secs <= 0 {
			return JobDefinition{}, fmt.Errorf("timeout must be a positive integer")
		}
		job.Params.Timeout = time.Duration(secs) * time.Second
	}
	if sub.IsSet("count") {
		if job.Params.Count = sub.GetInt("count"); job.Params.Count <= 0 {
			return JobDefinition{}, fmt.Errorf("count must be a positive integer")
		}
	}
	if sub.IsSet("workers") {
		if job.Params.Workers = sub.GetInt("workers"); job.Params.Workers <= 0 {
			return JobDefinition{}, fmt.Errorf("workers must be a positive integer")
		}
	}

	return job, nil
}
