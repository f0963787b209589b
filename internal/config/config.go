// Пакет config — загрузка и валидация конфигурации pocketfile
// из переменных окружения (и необязательного файла .env).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// MiB — один мебибайт.
const MiB = 1 << 20

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Разрешённые CORS-источники
	AllowedOrigins []string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальное число соединений в пуле
	DBMaxConns int

	// --- Хранилище ---

	// Корневой каталог для APK-файлов
	StoragePath string
	// Максимальный размер загружаемого файла в байтах
	MaxUploadSize int64
	// Добавлять короткий случайный суффикс к имени сохраняемого файла
	UniqueFilenames bool
	// Требовать грант на проект при загрузке файла
	UploadRequiresGrant bool

	// --- JWT ---

	// Секрет для подписи токенов
	JWTSecret string
	// Алгоритм подписи (HS256, HS384, HS512)
	JWTAlgorithm string
	// Время жизни токена
	JWTTTL time.Duration
	// Issuer токена
	JWTIssuer string

	// --- Redis (отзыв токенов, опционально) ---

	// Адрес Redis; пусто — отзыв токенов отключён
	RedisAddr string
	// Пароль Redis
	RedisPassword string
	// Номер базы Redis
	RedisDB int

	// --- Кэш метаданных файлов ---

	// Максимальное количество записей в кэше
	CacheSize int
	// TTL записи кэша
	CacheTTL time.Duration

	// --- Мониторинг зависимостей ---

	// Группа сервиса для topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// --- Начальное наполнение (команда seed) ---

	// Пароль администратора admin
	SeedAdminPassword string
	// Пароль пользователя developer; пусто — не создаётся
	SeedDeveloperPassword string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Если в рабочем каталоге есть файл .env, он загружается первым;
// уже заданные переменные окружения не перезаписываются.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("чтение .env: %w", err)
	}

	cfg := &Config{}
	var err error

	// --- Сервер ---

	// PF_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("PF_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("PF_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PF_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// PF_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PF_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PF_LOG_LEVEL: %w", err)
	}

	// PF_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("PF_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PF_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// PF_ALLOWED_ORIGINS — CORS-источники через запятую (по умолчанию *)
	cfg.AllowedOrigins = parseCSV(getEnvDefault("PF_ALLOWED_ORIGINS", "*"))

	// --- PostgreSQL ---

	// PF_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("PF_DB_HOST")
	if err != nil {
		return nil, err
	}

	// PF_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("PF_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("PF_DB_PORT: %w", err)
	}

	// PF_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("PF_DB_NAME")
	if err != nil {
		return nil, err
	}

	// PF_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("PF_DB_USER")
	if err != nil {
		return nil, err
	}

	// PF_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("PF_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// PF_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("PF_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("PF_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	cfg.DBMaxConns, err = getEnvInt("PF_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("PF_DB_MAX_CONNS: значение должно быть > 0, получено %d", cfg.DBMaxConns)
	}

	// --- Хранилище ---

	// PF_STORAGE_PATH — корень хранилища (по умолчанию /storage)
	cfg.StoragePath = strings.TrimRight(getEnvDefault("PF_STORAGE_PATH", "/storage"), "/")
	if cfg.StoragePath == "" {
		return nil, fmt.Errorf("PF_STORAGE_PATH: корень файловой системы не допускается")
	}

	// PF_MAX_UPLOAD_SIZE — лимит загрузки в байтах (по умолчанию 500 MiB)
	cfg.MaxUploadSize, err = getEnvInt64("PF_MAX_UPLOAD_SIZE", 500*MiB)
	if err != nil {
		return nil, fmt.Errorf("PF_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("PF_MAX_UPLOAD_SIZE: значение должно быть положительным, получено %d", cfg.MaxUploadSize)
	}

	// PF_UNIQUE_FILENAMES — суффикс к имени файла (по умолчанию true)
	cfg.UniqueFilenames, err = getEnvBool("PF_UNIQUE_FILENAMES", true)
	if err != nil {
		return nil, fmt.Errorf("PF_UNIQUE_FILENAMES: %w", err)
	}

	// PF_UPLOAD_REQUIRES_GRANT — проверка гранта при загрузке (по умолчанию true)
	cfg.UploadRequiresGrant, err = getEnvBool("PF_UPLOAD_REQUIRES_GRANT", true)
	if err != nil {
		return nil, fmt.Errorf("PF_UPLOAD_REQUIRES_GRANT: %w", err)
	}

	// --- JWT ---

	// PF_JWT_SECRET — обязательный
	cfg.JWTSecret, err = getEnvRequired("PF_JWT_SECRET")
	if err != nil {
		return nil, err
	}

	// PF_JWT_ALGORITHM — алгоритм подписи (по умолчанию HS256)
	cfg.JWTAlgorithm = strings.ToUpper(getEnvDefault("PF_JWT_ALGORITHM", "HS256"))
	switch cfg.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return nil, fmt.Errorf("PF_JWT_ALGORITHM: недопустимое значение %q, допустимые: HS256, HS384, HS512", cfg.JWTAlgorithm)
	}

	// PF_JWT_TTL — время жизни токена (по умолчанию 24h)
	cfg.JWTTTL, err = getEnvDuration("PF_JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("PF_JWT_TTL: %w", err)
	}
	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("PF_JWT_TTL: значение должно быть положительным")
	}

	// PF_JWT_ISSUER — issuer токенов (по умолчанию pocketfile)
	cfg.JWTIssuer = getEnvDefault("PF_JWT_ISSUER", "pocketfile")

	// --- Redis ---

	// PF_REDIS_ADDR — адрес Redis (опционально)
	cfg.RedisAddr = getEnvDefault("PF_REDIS_ADDR", "")
	cfg.RedisPassword = getEnvDefault("PF_REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvInt("PF_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("PF_REDIS_DB: %w", err)
	}

	// --- Кэш ---

	// PF_CACHE_SIZE — размер кэша метаданных (по умолчанию 1000, 0 — выключен)
	cfg.CacheSize, err = getEnvInt("PF_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("PF_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("PF_CACHE_SIZE: значение %d не может быть отрицательным", cfg.CacheSize)
	}

	// PF_CACHE_TTL — TTL записи кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("PF_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PF_CACHE_TTL: %w", err)
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthGroup = getEnvDefault("PF_DEPHEALTH_GROUP", "pocketfile")

	// PF_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("PF_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PF_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// PF_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("PF_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PF_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Seed ---

	cfg.SeedAdminPassword = getEnvDefault("PF_SEED_ADMIN_PASSWORD", "")
	cfg.SeedDeveloperPassword = getEnvDefault("PF_SEED_DEVELOPER_PASSWORD", "")

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// MigrationURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrationURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// DatabaseURL возвращает URL PostgreSQL для topologymetrics (без пароля).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// MaxUploadSizeMB возвращает лимит загрузки в мегабайтах (для сообщений).
func (c *Config) MaxUploadSizeMB() int64 {
	return c.MaxUploadSize / MiB
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 — то же, что getEnvInt, для размеров в байтах.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
