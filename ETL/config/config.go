package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// ETLConfig содержит конфигурацию для ETL-процесса
type ETLConfig struct {
	// Конфигурация для подключения к OLAP БД (целевой)
	OLAPConfig DatabaseConfig `mapstructure:"database"`

	// Параметры преобразования данных
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	// Источники данных
	Input InputConfig `mapstructure:"input"`

	// Приёмники результатов
	Sinks SinkConfig `mapstructure:"sinks"`

	// HTTP API
	Server ServerConfig `mapstructure:"server"`

	// Интервал запуска ETL
	RunInterval time.Duration `mapstructure:"run_interval"`

	// Включение/отключение логирования
	EnableDetailedLogging bool `mapstructure:"enable_detailed_logging"`

	// Каталог для файлов лога (пусто - только stdout)
	LogDir string `mapstructure:"log_dir"`
}

// DatabaseConfig содержит настройки подключения к базе данных
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// PipelineConfig - неизменяемые параметры стадий преобразования.
// Передаётся по значению в каждую стадию.
type PipelineConfig struct {
	SourceTimezone   string             `mapstructure:"source_timezone"`
	TimestampLayouts []string           `mapstructure:"timestamp_layouts"`
	DateLayout       string             `mapstructure:"date_layout"`
	PartsSeparator   string             `mapstructure:"parts_separator"`
	Severity         SeverityThresholds `mapstructure:"severity"`
	Workers          int                `mapstructure:"workers"`
}

// SeverityThresholds пороги классификации серьёзности (строгое "больше")
type SeverityThresholds struct {
	HighCost       decimal.Decimal `mapstructure:"-"`
	HighDowntime   int64           `mapstructure:"high_downtime"`
	MediumCost     decimal.Decimal `mapstructure:"-"`
	MediumDowntime int64           `mapstructure:"medium_downtime"`
}

// RowRange допустимый диапазон количества строк во входном файле.
// Нулевой Max отключает проверку.
type RowRange struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

// InputConfig описывает расположение входных файлов
type InputConfig struct {
	Dir            string   `mapstructure:"dir"`
	EventsFile     string   `mapstructure:"events_file"`
	OperatorsFile  string   `mapstructure:"operators_file"`
	EventsRowRange RowRange `mapstructure:"events_row_range"`
	RosterRowRange RowRange `mapstructure:"roster_row_range"`

	// Производственный датасет (необязательный, пусто - не читается)
	FactoryFile     string   `mapstructure:"factory_file"`
	FactoryRowRange RowRange `mapstructure:"factory_row_range"`
}

// SinkConfig определяет, куда выгружаются факты и агрегаты
type SinkConfig struct {
	OutputDir    string `mapstructure:"output_dir"`
	WriteCSV     bool   `mapstructure:"write_csv"`
	WriteArchive bool   `mapstructure:"write_archive"`
	WriteExcel   bool   `mapstructure:"write_excel"`
	LoadDatabase bool   `mapstructure:"load_database"`
}

// ServerConfig настройки HTTP API
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Значения конфигурации по умолчанию
var (
	DefaultOLAPConfig = DatabaseConfig{
		Driver:   "mysql",
		Host:     "localhost",
		Port:     3306,
		User:     "root",
		Password: "",
		DBName:   "maintenance_analytics",
	}

	DefaultPipelineConfig = PipelineConfig{
		SourceTimezone:   "Europe/Paris",
		TimestampLayouts: []string{"2006-01-02 15:04:05"},
		DateLayout:       "2006-01-02",
		PartsSeparator:   ",",
		Severity: SeverityThresholds{
			HighCost:       decimal.NewFromInt(2500),
			HighDowntime:   120,
			MediumCost:     decimal.NewFromInt(1500),
			MediumDowntime: 60,
		},
		Workers: 4,
	}

	DefaultETLConfig = ETLConfig{
		OLAPConfig: DefaultOLAPConfig,
		Pipeline:   DefaultPipelineConfig,
		Input: InputConfig{
			Dir:           "./data/raw",
			EventsFile:    "maintenance_events.csv",
			OperatorsFile: "operators_roster.csv",
		},
		Sinks: SinkConfig{
			OutputDir:    "./data/processed",
			WriteCSV:     true,
			WriteArchive: true,
			WriteExcel:   true,
			LoadDatabase: false,
		},
		Server:                ServerConfig{Addr: ":8080"},
		RunInterval:           1 * time.Hour,
		EnableDetailedLogging: true,
	}
)

// GetConfig возвращает конфигурацию ETL по умолчанию
func GetConfig() ETLConfig {
	config := DefaultETLConfig

	// Срезы копируем, чтобы изменения не затрагивали значения по умолчанию
	config.Pipeline.TimestampLayouts = append([]string(nil), DefaultPipelineConfig.TimestampLayouts...)

	return config
}

// Load читает конфигурацию из файла (если указан) и переменных окружения METL_*.
// Незаданные ключи берутся из GetConfig().
func Load(configPath string) (ETLConfig, error) {
	config := GetConfig()

	v := viper.New()
	setDefaults(v, config)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return config, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
	}

	// Переменные окружения вида METL_PIPELINE_WORKERS
	v.SetEnvPrefix("METL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	// decimal не декодируется через mapstructure, поэтому денежные пороги читаем отдельно
	highCost, err := decimal.NewFromString(v.GetString("pipeline.severity.high_cost"))
	if err != nil {
		return config, fmt.Errorf("некорректный pipeline.severity.high_cost: %w", err)
	}
	mediumCost, err := decimal.NewFromString(v.GetString("pipeline.severity.medium_cost"))
	if err != nil {
		return config, fmt.Errorf("некорректный pipeline.severity.medium_cost: %w", err)
	}
	config.Pipeline.Severity.HighCost = highCost
	config.Pipeline.Severity.MediumCost = mediumCost

	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("конфигурация не прошла проверку: %w", err)
	}

	return config, nil
}

// setDefaults регистрирует значения по умолчанию, чтобы AutomaticEnv видел все ключи
func setDefaults(v *viper.Viper, c ETLConfig) {
	v.SetDefault("database.driver", c.OLAPConfig.Driver)
	v.SetDefault("database.host", c.OLAPConfig.Host)
	v.SetDefault("database.port", c.OLAPConfig.Port)
	v.SetDefault("database.user", c.OLAPConfig.User)
	v.SetDefault("database.password", c.OLAPConfig.Password)
	v.SetDefault("database.dbname", c.OLAPConfig.DBName)

	v.SetDefault("pipeline.source_timezone", c.Pipeline.SourceTimezone)
	v.SetDefault("pipeline.timestamp_layouts", c.Pipeline.TimestampLayouts)
	v.SetDefault("pipeline.date_layout", c.Pipeline.DateLayout)
	v.SetDefault("pipeline.parts_separator", c.Pipeline.PartsSeparator)
	v.SetDefault("pipeline.severity.high_cost", c.Pipeline.Severity.HighCost.String())
	v.SetDefault("pipeline.severity.high_downtime", c.Pipeline.Severity.HighDowntime)
	v.SetDefault("pipeline.severity.medium_cost", c.Pipeline.Severity.MediumCost.String())
	v.SetDefault("pipeline.severity.medium_downtime", c.Pipeline.Severity.MediumDowntime)
	v.SetDefault("pipeline.workers", c.Pipeline.Workers)

	v.SetDefault("input.dir", c.Input.Dir)
	v.SetDefault("input.events_file", c.Input.EventsFile)
	v.SetDefault("input.operators_file", c.Input.OperatorsFile)
	v.SetDefault("input.events_row_range.min", c.Input.EventsRowRange.Min)
	v.SetDefault("input.events_row_range.max", c.Input.EventsRowRange.Max)
	v.SetDefault("input.roster_row_range.min", c.Input.RosterRowRange.Min)
	v.SetDefault("input.roster_row_range.max", c.Input.RosterRowRange.Max)
	v.SetDefault("input.factory_file", c.Input.FactoryFile)
	v.SetDefault("input.factory_row_range.min", c.Input.FactoryRowRange.Min)
	v.SetDefault("input.factory_row_range.max", c.Input.FactoryRowRange.Max)

	v.SetDefault("sinks.output_dir", c.Sinks.OutputDir)
	v.SetDefault("sinks.write_csv", c.Sinks.WriteCSV)
	v.SetDefault("sinks.write_archive", c.Sinks.WriteArchive)
	v.SetDefault("sinks.write_excel", c.Sinks.WriteExcel)
	v.SetDefault("sinks.load_database", c.Sinks.LoadDatabase)

	v.SetDefault("server.addr", c.Server.Addr)
	v.SetDefault("run_interval", c.RunInterval)
	v.SetDefault("enable_detailed_logging", c.EnableDetailedLogging)
	v.SetDefault("log_dir", c.LogDir)
}

// Validate проверяет согласованность конфигурации
func (c ETLConfig) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if c.RunInterval <= 0 {
		return fmt.Errorf("run_interval должен быть положительным: %v", c.RunInterval)
	}
	if c.Input.EventsFile == "" || c.Input.OperatorsFile == "" {
		return fmt.Errorf("не заданы входные файлы")
	}
	if c.Sinks.LoadDatabase && c.OLAPConfig.Driver == "" {
		return fmt.Errorf("database.driver обязателен при load_database=true")
	}
	return nil
}

// Validate проверяет параметры преобразования
func (p PipelineConfig) Validate() error {
	if p.SourceTimezone == "" {
		return fmt.Errorf("pipeline.source_timezone обязателен")
	}
	if _, err := time.LoadLocation(p.SourceTimezone); err != nil {
		return fmt.Errorf("неизвестный часовой пояс %q: %w", p.SourceTimezone, err)
	}
	if len(p.TimestampLayouts) == 0 {
		return fmt.Errorf("pipeline.timestamp_layouts не может быть пустым")
	}
	if p.PartsSeparator == "" {
		return fmt.Errorf("pipeline.parts_separator обязателен")
	}
	if p.Severity.MediumCost.GreaterThan(p.Severity.HighCost) {
		return fmt.Errorf("порог стоимости Medium (%s) выше порога High (%s)",
			p.Severity.MediumCost, p.Severity.HighCost)
	}
	if p.Severity.MediumDowntime > p.Severity.HighDowntime {
		return fmt.Errorf("порог простоя Medium (%d) выше порога High (%d)",
			p.Severity.MediumDowntime, p.Severity.HighDowntime)
	}
	if p.Workers < 1 {
		return fmt.Errorf("pipeline.workers должен быть >= 1")
	}
	return nil
}
