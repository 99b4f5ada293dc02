package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LilVoxy/maintenance_analytics/ETL/api"
	"github.com/LilVoxy/maintenance_analytics/ETL/config"
	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

var (
	rootCmd = &cobra.Command{
		Use:           "metl",
		Short:         "ETL аналитики технического обслуживания",
		Long:          `metl извлекает события обслуживания производственных линий, проверяет и очищает их, строит факты и сводные метрики.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Глобальные флаги
	configPath string

	// Флаги команд
	eventsPath   string
	withSchedule bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Путь к файлу конфигурации (YAML)")

	validateCmd.Flags().StringVar(&eventsPath, "events", "", "Файл событий для проверки (по умолчанию input.dir/input.events_file)")
	serveCmd.Flags().BoolVar(&withSchedule, "schedule", false, "Дополнительно запускать ETL по расписанию")

	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(scheduledCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
}

// once команда
var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Однократный запуск ETL",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newRunner()
		if err != nil {
			return err
		}
		defer runner.Close()

		report, err := runner.ExecuteETL()
		if err != nil {
			return fmt.Errorf("ошибка при выполнении ETL: %w", err)
		}
		return printJSON(report)
	},
}

// scheduled команда
var scheduledCmd = &cobra.Command{
	Use:   "scheduled",
	Short: "Запуск ETL по расписанию (run_interval)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner, err := newRunner()
		if err != nil {
			return err
		}
		defer runner.Close()

		return runner.StartScheduler(ctx)
	},
}

// validate команда
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Только проверка схемы файла событий",
	RunE: func(cmd *cobra.Command, args []string) error {
		etlConfig, logger, err := setup()
		if err != nil {
			return err
		}
		// Проверка не пишет в базу
		etlConfig.Sinks.LoadDatabase = false

		runner, err := NewETLRunner(etlConfig, logger)
		if err != nil {
			return fmt.Errorf("ошибка при создании ETL Runner: %w", err)
		}
		defer runner.Close()

		path := eventsPath
		if path == "" {
			path = filepath.Join(etlConfig.Input.Dir, etlConfig.Input.EventsFile)
		}

		report, err := runner.ValidateFile(path)
		if report != nil {
			if printErr := printJSON(report); printErr != nil {
				return printErr
			}
		}
		if errors.Is(err, models.ErrSchemaViolation) {
			return fmt.Errorf("файл %s не прошёл проверку: %w", path, err)
		}
		return err
	},
}

// serve команда
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "HTTP API журнала запусков и уведомления по WebSocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		etlConfig, logger, err := setup()
		if err != nil {
			return err
		}
		runner, err := NewETLRunner(etlConfig, logger)
		if err != nil {
			return fmt.Errorf("ошибка при создании ETL Runner: %w", err)
		}
		defer runner.Close()

		notifier := api.NewNotifier(logger)
		go notifier.Run(ctx)
		runner.SetNotifier(notifier)

		if withSchedule {
			go func() {
				if err := runner.StartScheduler(ctx); err != nil {
					logger.Error("%v", err)
				}
			}()
		}

		server := &http.Server{
			Addr:              etlConfig.Server.Addr,
			Handler:           api.NewRouter(runner.Handler()),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("HTTP API слушает %s", etlConfig.Server.Addr)
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ошибка HTTP сервера: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("Получен сигнал завершения. Останавливаем сервер...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

// setup загружает конфигурацию и создаёт логгер
func setup() (config.ETLConfig, *utils.ETLLogger, error) {
	etlConfig, err := config.Load(configPath)
	if err != nil {
		return etlConfig, nil, err
	}
	logger, err := utils.NewETLLogger(etlConfig.EnableDetailedLogging, etlConfig.LogDir)
	if err != nil {
		return etlConfig, nil, fmt.Errorf("ошибка инициализации логгера: %w", err)
	}
	return etlConfig, logger, nil
}

func newRunner() (*ETLRunner, error) {
	etlConfig, logger, err := setup()
	if err != nil {
		return nil, err
	}
	runner, err := NewETLRunner(etlConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании ETL Runner: %w", err)
	}
	return runner, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
