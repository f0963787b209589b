// dto.go — входные и выходные структуры API.
package handlers

import (
	"math"
	"time"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
)

// --- Запросы ---

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64,username"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN USER"`
}

type projectCreateRequest struct {
	Name        string  `json:"name" validate:"required,notblank,max=128"`
	Description *string `json:"description" validate:"omitempty,max=4096"`
}

type projectUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=128"`
	Description *string `json:"description" validate:"omitempty,max=4096"`
}

type versionCreateRequest struct {
	VersionString string `json:"version_string" validate:"required,notblank,max=64"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type grantsRequest struct {
	ProjectIDs []int64 `json:"project_ids" validate:"required,dive,gt=0"`
}

// --- Ответы ---

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

type projectResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	VersionCount int       `json:"version_count"`
}

type versionResponse struct {
	ID            int64     `json:"id"`
	VersionString string    `json:"version_string"`
	ProjectID     int64     `json:"project_id"`
	CreatedAt     time.Time `json:"created_at"`
	FileCount     int       `json:"file_count"`
}

type fileResponse struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	FileSize     int64     `json:"file_size"`
	VersionID    int64     `json:"version_id"`
	UploadedBy   *int64    `json:"uploaded_by"`
	UploadedAt   time.Time `json:"uploaded_at"`
	UploaderName *string   `json:"uploader_name"`
}

type grantsResponse struct {
	UserID     int64   `json:"user_id"`
	ProjectIDs []int64 `json:"project_ids"`
}

type recentDownloadResponse struct {
	IPAddress    string    `json:"ip_address"`
	Filename     string    `json:"filename"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

type downloadTrendResponse struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type dashboardResponse struct {
	TotalProjects     int64                    `json:"total_projects"`
	TotalVersions     int64                    `json:"total_versions"`
	TotalFiles        int64                    `json:"total_files"`
	TotalStorageBytes int64                    `json:"total_storage_bytes"`
	TotalStorageMB    float64                  `json:"total_storage_mb"`
	RecentDownloads   []recentDownloadResponse `json:"recent_downloads"`
	DownloadTrends    []downloadTrendResponse  `json:"download_trends"`
}

// --- Маппинг domain → API ---

func mapUser(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func mapProject(p *model.Project) projectResponse {
	return projectResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		CreatedAt:    p.CreatedAt,
		VersionCount: p.VersionCount,
	}
}

func mapVersion(v *model.Version) versionResponse {
	return versionResponse{
		ID:            v.ID,
		VersionString: v.Label,
		ProjectID:     v.ProjectID,
		CreatedAt:     v.CreatedAt,
		FileCount:     v.FileCount,
	}
}

func mapFile(a *model.Artifact) fileResponse {
	return fileResponse{
		ID:           a.ID,
		Filename:     a.Filename,
		FileSize:     a.Size,
		VersionID:    a.VersionID,
		UploadedBy:   a.UploadedBy,
		UploadedAt:   a.UploadedAt,
		UploaderName: a.UploaderName,
	}
}

func mapDashboard(s *model.DashboardStats) dashboardResponse {
	resp := dashboardResponse{
		TotalProjects:     s.TotalProjects,
		TotalVersions:     s.TotalVersions,
		TotalFiles:        s.TotalFiles,
		TotalStorageBytes: s.TotalBytes,
		TotalStorageMB:    bytesToMB(s.TotalBytes),
		RecentDownloads:   make([]recentDownloadResponse, len(s.RecentDownloads)),
		DownloadTrends:    make([]downloadTrendResponse, len(s.DownloadTrends)),
	}
	for i, d := range s.RecentDownloads {
		resp.RecentDownloads[i] = recentDownloadResponse{
			IPAddress:    d.IPAddress,
			Filename:     d.Filename,
			DownloadedAt: d.DownloadedAt,
		}
	}
	for i, c := range s.DownloadTrends {
		resp.DownloadTrends[i] = downloadTrendResponse{Date: c.Day, Count: c.Count}
	}
	return resp
}

// bytesToMB переводит байты в мегабайты с округлением до 2 знаков.
func bytesToMB(n int64) float64 {
	return math.Round(float64(n)/(1024*1024)*100) / 100
}

// mapSlice применяет fn к каждому элементу. Пустой вход даёт [], не null.
func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
