package model

import "time"

// DownloadEvent — запись журнала скачиваний.
// Хранится в таблице file_download_logs, не изменяется.
type DownloadEvent struct {
	// ID — идентификатор записи
	ID int64
	// ArtifactID — скачанный файл
	ArtifactID int64
	// IPAddress — адрес клиента
	IPAddress string
	// DownloadedAt — время скачивания
	DownloadedAt time.Time
}

// RecentDownload — событие скачивания с именем файла.
type RecentDownload struct {
	DownloadEvent
	Filename string
}

// DownloadBucket — количество скачиваний, начавшихся в интервале [Start, Start+15m).
// Репозиторий отдаёт интервалы в UTC, по дням их раскладывает аудитор.
type DownloadBucket struct {
	Start time.Time
	Count int64
}

// DailyCount — количество скачиваний за календарный день.
type DailyCount struct {
	// Day — дата в формате YYYY-MM-DD (локальное время сервера)
	Day   string
	Count int64
}

// DashboardStats — агрегированная статистика для панели.
type DashboardStats struct {
	TotalProjects   int64
	TotalVersions   int64
	TotalFiles      int64
	TotalBytes      int64
	RecentDownloads []RecentDownload
	DownloadTrends  []DailyCount
}
