package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/JohnAZoidberg/tapview/internal/config"
	"github.com/JohnAZoidberg/tapview/internal/heatmap"
)

// ルートの設定
func (s *Server) setupRoutes(router *http.ServeMux) {
	// 設定関連のエンドポイント
	router.HandleFunc("GET /api/config", s.handleGetConfig)
	router.HandleFunc("PUT /api/config", s.handleUpdateConfig)
	router.HandleFunc("POST /api/config/save", s.handleSaveConfig)

	// タッチ状態のエンドポイント
	router.HandleFunc("GET /api/touch", s.handleGetTouch)
	router.HandleFunc("POST /api/touch/start", s.handleStartTouch)
	router.HandleFunc("POST /api/touch/stop", s.handleStopTouch)

	// ヒートマップのエンドポイント
	router.HandleFunc("GET /api/heatmap", s.handleGetHeatmap)
	router.HandleFunc("POST /api/heatmap/start", s.handleStartHeatmap)
	router.HandleFunc("POST /api/heatmap/stop", s.handleStopHeatmap)

	// ALC制御のエンドポイント
	router.HandleFunc("POST /api/alc/reset", s.handleAlc(heatmap.AlcReset))
	router.HandleFunc("POST /api/alc/enable", s.handleAlc(heatmap.AlcEnable))
	router.HandleFunc("POST /api/alc/disable", s.handleAlc(heatmap.AlcDisable))

	// ヘルスチェック用エンドポイント
	router.HandleFunc("GET /api/health", s.handleHealthCheck)
}

// 設定取得ハンドラ
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.GetConfig())
}

// 設定更新ハンドラ
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var newConfig config.Config

	if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
		writeError(w, http.StatusBadRequest, "設定の解析に失敗しました")
		return
	}

	s.UpdateConfig(&newConfig)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// 設定保存ハンドラ
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var saveRequest struct {
		Path string `json:"path"`
	}

	if err := json.NewDecoder(r.Body).Decode(&saveRequest); err != nil {
		writeError(w, http.StatusBadRequest, "リクエストの解析に失敗しました")
		return
	}

	configPath := saveRequest.Path
	if configPath == "" {
		// デフォルトパスを使用
		userConfigDir, err := config.GetDefaultConfigDir()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "デフォルト設定ディレクトリの取得に失敗しました")
			return
		}
		configPath = filepath.Join(userConfigDir, "config.toml")
	}

	if err := config.SaveConfig(configPath, s.GetConfig()); err != nil {
		writeError(w, http.StatusInternalServerError, "設定の保存に失敗しました: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"path":   configPath,
	})
}

// タッチデコードサービスとヒートマップ取得サービス
var (
	touchService   *TouchService
	heatmapService *HeatmapService
)

// タッチ状態取得ハンドラ
func (s *Server) handleGetTouch(w http.ResponseWriter, r *http.Request) {
	if touchService == nil {
		writeError(w, http.StatusServiceUnavailable, "タッチデコードサービスは起動していません")
		return
	}
	if err := touchService.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("タッチデコードが停止しています: %v", err))
		return
	}
	state := touchService.Latest()
	if state == nil {
		writeError(w, http.StatusNotFound, "まだ一貫状態を観測していません")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// タッチデコード起動ハンドラ
func (s *Server) handleStartTouch(w http.ResponseWriter, r *http.Request) {
	if touchService == nil {
		touchService = NewTouchService(s.GetConfig(), s.verbose)
	}

	if touchService.IsRunning() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_running"})
		return
	}

	if err := touchService.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("サービスの起動に失敗しました: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// タッチデコード停止ハンドラ
func (s *Server) handleStopTouch(w http.ResponseWriter, r *http.Request) {
	if touchService == nil || !touchService.IsRunning() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_running"})
		return
	}

	if err := touchService.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("サービスの停止に失敗しました: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// ヒートマップ取得ハンドラ
func (s *Server) handleGetHeatmap(w http.ResponseWriter, r *http.Request) {
	if heatmapService == nil {
		writeError(w, http.StatusServiceUnavailable, "ヒートマップ取得サービスは起動していません")
		return
	}
	if err := heatmapService.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("ヒートマップ取得が停止しています: %v", err))
		return
	}
	frame := heatmapService.Latest()
	if frame == nil {
		writeError(w, http.StatusNotFound, "まだフレームを取得していません")
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// ヒートマップ取得起動ハンドラ
func (s *Server) handleStartHeatmap(w http.ResponseWriter, r *http.Request) {
	if heatmapService == nil {
		heatmapService = NewHeatmapService(s.GetConfig(), s.verbose)
	}

	if heatmapService.IsRunning() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_running"})
		return
	}

	if err := heatmapService.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("サービスの起動に失敗しました: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// ヒートマップ取得停止ハンドラ
func (s *Server) handleStopHeatmap(w http.ResponseWriter, r *http.Request) {
	if heatmapService == nil || !heatmapService.IsRunning() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_running"})
		return
	}

	if err := heatmapService.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("サービスの停止に失敗しました: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// ALC制御ハンドラ
func (s *Server) handleAlc(cmd heatmap.AlcCommand) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if heatmapService == nil || !heatmapService.IsRunning() {
			writeError(w, http.StatusServiceUnavailable, "ヒートマップ取得サービスは起動していません")
			return
		}
		if err := heatmapService.SendAlcCommand(cmd); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": cmd.String()})
	}
}

// ヘルスチェックハンドラ
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
