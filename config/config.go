// Package config loads the speedcam settings from a JSON file, an optional
// .env file and SPEEDCAM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"

	"github.com/swdee/go-speedcam"
	"github.com/swdee/go-speedcam/speed"
	"github.com/swdee/go-speedcam/tracker"
)

// DefaultConfigPath is the path to the reference settings file
const DefaultConfigPath = "config/speedcam.defaults.json"

// EnvPrefix is prepended to the upper cased JSON key of each setting to
// form its environment variable name, eg. SPEEDCAM_LINE_A
const EnvPrefix = "SPEEDCAM_"

const maxFileSize = 1 * 1024 * 1024

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds all settings.  Fields left out of the JSON file are nil and
// the Get* methods return their reference defaults.
type Config struct {
	// Reference lines
	LineA         *int     `json:"line_a,omitempty" validate:"omitempty,gte=0"`
	LineB         *int     `json:"line_b,omitempty" validate:"omitempty,gte=0"`
	Offset        *int     `json:"offset,omitempty" validate:"omitempty,gt=0"`
	DistanceM     *float64 `json:"distance_m,omitempty" validate:"omitempty,gt=0"`
	Policy        *string  `json:"policy,omitempty" validate:"omitempty,oneof=single-shot continuous"`
	SpeedLimitKMH *float64 `json:"speed_limit_kmh,omitempty" validate:"omitempty,gte=0"`
	Units         *string  `json:"units,omitempty" validate:"omitempty,oneof=mps mph kmph kph"`

	// Tracker
	DistanceThreshold *float64 `json:"distance_threshold,omitempty" validate:"omitempty,gt=0"`
	MatchPolicy       *string  `json:"match_policy,omitempty" validate:"omitempty,oneof=greedy optimal"`
	TrailSize         *int     `json:"trail_size,omitempty" validate:"omitempty,gte=0"`

	// Detections
	Classes        []string `json:"classes,omitempty" validate:"omitempty,dive,required"`
	MinProbability *float64 `json:"min_probability,omitempty" validate:"omitempty,gte=0,lte=1"`
	NMSThreshold   *float64 `json:"nms_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`

	// Video
	FrameWidth  *int     `json:"frame_width,omitempty" validate:"omitempty,gt=0"`
	FrameHeight *int     `json:"frame_height,omitempty" validate:"omitempty,gt=0"`
	FPS         *float64 `json:"fps,omitempty" validate:"omitempty,gt=0"`
	Stride      *int     `json:"stride,omitempty" validate:"omitempty,gte=1"`

	// Outputs
	LogLevel     *string `json:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	LogFile      *string `json:"log_file,omitempty"`
	DBPath       *string `json:"db_path,omitempty"`
	ListenAddr   *string `json:"listen_addr,omitempty" validate:"omitempty,hostname_port"`
	RedisAddr    *string `json:"redis_addr,omitempty" validate:"omitempty,hostname_port"`
	RedisChannel *string `json:"redis_channel,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// Empty returns a Config with every field unset
func Empty() *Config {
	return &Config{}
}

// Load reads the JSON settings file at path and validates it
func Load(path string) (*Config, error) {

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the .env files into the process
// environment without overriding ones already set.  Missing files are
// ignored.
func LoadDotEnv(files ...string) error {

	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	return nil
}

// ApplyEnv overrides settings from SPEEDCAM_* variables returned by lookup,
// pass os.LookupEnv for the process environment.  The result is validated.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {

	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	ints := map[string]**int{
		"LINE_A":       &c.LineA,
		"LINE_B":       &c.LineB,
		"OFFSET":       &c.Offset,
		"TRAIL_SIZE":   &c.TrailSize,
		"FRAME_WIDTH":  &c.FrameWidth,
		"FRAME_HEIGHT": &c.FrameHeight,
		"STRIDE":       &c.Stride,
	}

	for key, field := range ints {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, v, err)
			}
			*field = ptrInt(n)
		}
	}

	floats := map[string]**float64{
		"DISTANCE_M":         &c.DistanceM,
		"SPEED_LIMIT_KMH":    &c.SpeedLimitKMH,
		"DISTANCE_THRESHOLD": &c.DistanceThreshold,
		"MIN_PROBABILITY":    &c.MinProbability,
		"NMS_THRESHOLD":      &c.NMSThreshold,
		"FPS":                &c.FPS,
	}

	for key, field := range floats {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, v, err)
			}
			*field = ptrFloat64(f)
		}
	}

	strs := map[string]**string{
		"POLICY":        &c.Policy,
		"UNITS":         &c.Units,
		"MATCH_POLICY":  &c.MatchPolicy,
		"LOG_LEVEL":     &c.LogLevel,
		"LOG_FILE":      &c.LogFile,
		"DB_PATH":       &c.DBPath,
		"LISTEN_ADDR":   &c.ListenAddr,
		"REDIS_ADDR":    &c.RedisAddr,
		"REDIS_CHANNEL": &c.RedisChannel,
	}

	for key, field := range strs {
		if v, ok := get(key); ok {
			*field = ptrString(v)
		}
	}

	if v, ok := get("CLASSES"); ok {
		c.Classes = nil
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.Classes = append(c.Classes, name)
			}
		}
	}

	return c.Validate()
}

// Validate checks field ranges and that the reference lines form a usable
// layout
func (c *Config) Validate() error {

	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if err := c.SpeedConfig().Validate(); err != nil {
		return err
	}

	return nil
}

// GetLineA returns the line_a value or the default
func (c *Config) GetLineA() int {
	if c.LineA == nil {
		return speed.DefaultLineA
	}
	return *c.LineA
}

// GetLineB returns the line_b value or the default
func (c *Config) GetLineB() int {
	if c.LineB == nil {
		return speed.DefaultLineB
	}
	return *c.LineB
}

// GetOffset returns the offset value or the default
func (c *Config) GetOffset() int {
	if c.Offset == nil {
		return speed.DefaultOffset
	}
	return *c.Offset
}

// GetDistanceM returns the distance_m value or the default
func (c *Config) GetDistanceM() float64 {
	if c.DistanceM == nil {
		return speed.DefaultDistanceM
	}
	return *c.DistanceM
}

// GetPolicy returns the emission policy, single-shot by default
func (c *Config) GetPolicy() speed.Policy {
	if c.Policy == nil {
		return speed.SingleShot
	}
	p, err := speed.ParsePolicy(*c.Policy)
	if err != nil {
		return speed.SingleShot
	}
	return p
}

// GetSpeedLimitKMH returns the speed_limit_kmh value, 0 (disabled) by default
func (c *Config) GetSpeedLimitKMH() float64 {
	if c.SpeedLimitKMH == nil {
		return 0
	}
	return *c.SpeedLimitKMH
}

// GetUnits returns the display units, km/h by default
func (c *Config) GetUnits() string {
	if c.Units == nil {
		return speed.KMPH
	}
	return *c.Units
}

// GetDistanceThreshold returns the tracker match distance or the default
func (c *Config) GetDistanceThreshold() float64 {
	if c.DistanceThreshold == nil {
		return tracker.DefaultDistanceThreshold
	}
	return *c.DistanceThreshold
}

// GetMatchPolicy returns the tracker match policy, greedy by default
func (c *Config) GetMatchPolicy() tracker.MatchPolicy {
	if c.MatchPolicy == nil {
		return tracker.GreedyMatch
	}
	p, err := tracker.ParseMatchPolicy(*c.MatchPolicy)
	if err != nil {
		return tracker.GreedyMatch
	}
	return p
}

// GetTrailSize returns the trail_size value or the default
func (c *Config) GetTrailSize() int {
	if c.TrailSize == nil {
		return 30
	}
	return *c.TrailSize
}

// GetClasses returns the vehicle classes or the default car, truck and bus
func (c *Config) GetClasses() []string {
	if len(c.Classes) == 0 {
		return speedcam.DefaultVehicleClasses
	}
	return c.Classes
}

// GetMinProbability returns the min_probability value, 0 keeps everything
// the detector reported
func (c *Config) GetMinProbability() float64 {
	if c.MinProbability == nil {
		return 0
	}
	return *c.MinProbability
}

// GetNMSThreshold returns the nms_threshold value, 0 disables suppression
func (c *Config) GetNMSThreshold() float64 {
	if c.NMSThreshold == nil {
		return 0
	}
	return *c.NMSThreshold
}

// GetFrameWidth returns the processing frame width or the default
func (c *Config) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return 1020
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the processing frame height or the default
func (c *Config) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return 500
	}
	return *c.FrameHeight
}

// GetFPS returns the output video frame rate or the default
func (c *Config) GetFPS() float64 {
	if c.FPS == nil {
		return 20
	}
	return *c.FPS
}

// GetStride returns the frame stride or the default of every third frame
func (c *Config) GetStride() int {
	if c.Stride == nil {
		return 3
	}
	return *c.Stride
}

// GetLogLevel returns the log_level value or info
func (c *Config) GetLogLevel() string {
	if c.LogLevel == nil {
		return "info"
	}
	return *c.LogLevel
}

// GetLogFile returns the log_file value, empty disables file logging
func (c *Config) GetLogFile() string {
	if c.LogFile == nil {
		return ""
	}
	return *c.LogFile
}

// GetDBPath returns the db_path value, empty disables the event store
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetListenAddr returns the listen_addr value, empty disables the server
func (c *Config) GetListenAddr() string {
	if c.ListenAddr == nil {
		return ""
	}
	return *c.ListenAddr
}

// GetRedisAddr returns the redis_addr value, empty disables publishing
func (c *Config) GetRedisAddr() string {
	if c.RedisAddr == nil {
		return ""
	}
	return *c.RedisAddr
}

// GetRedisChannel returns the redis_channel value or the default
func (c *Config) GetRedisChannel() string {
	if c.RedisChannel == nil {
		return "speedcam:events"
	}
	return *c.RedisChannel
}

// SpeedConfig returns the speed engine configuration
func (c *Config) SpeedConfig() speed.Config {
	return speed.Config{
		LineA:         c.GetLineA(),
		LineB:         c.GetLineB(),
		Offset:        c.GetOffset(),
		DistanceM:     c.GetDistanceM(),
		Policy:        c.GetPolicy(),
		SpeedLimitKMH: c.GetSpeedLimitKMH(),
	}
}

// PipelineOptions returns the pipeline options for the settings, the class
// filter is built against labels
func (c *Config) PipelineOptions(labels []string) (speedcam.Options, error) {

	opts := speedcam.Options{
		DistanceThreshold: c.GetDistanceThreshold(),
		MatchPolicy:       c.GetMatchPolicy(),
		Speed:             c.SpeedConfig(),
		TrailSize:         c.GetTrailSize(),
		NMSThreshold:      float32(c.GetNMSThreshold()),
	}

	if len(labels) > 0 {
		filter, err := speedcam.NewClassFilter(labels, c.GetClasses(), float32(c.GetMinProbability()))
		if err != nil {
			return opts, fmt.Errorf("failed to build class filter: %w", err)
		}
		opts.Filter = filter
	}

	return opts, nil
}
