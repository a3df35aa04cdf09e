package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config はアプリケーション全体の設定を表す構造体
type Config struct {
	Devices DevicesConfig `toml:"devices"`
	Touch   TouchConfig   `toml:"touch"`
	Heatmap HeatmapConfig `toml:"heatmap"`
	MQTT    MQTTConfig    `toml:"mqtt"`
}

// DevicesConfig は入力デバイスのパス設定
type DevicesConfig struct {
	TouchpadEvent string `toml:"touchpad_event"` // evdevデバイスのパス（例: /dev/input/event5）
	Hidraw        string `toml:"hidraw"`         // hidrawデバイスのパス（例: /dev/hidraw2）
}

// TouchConfig はタッチデコーダの設定
type TouchConfig struct {
	Source    string        `toml:"source"`     // "evdev" または "report"
	IdleSleep time.Duration `toml:"idle_sleep"` // イベント未着時の待機時間
}

// HeatmapConfig はヒートマップ取得の設定
type HeatmapConfig struct {
	Enabled      bool `toml:"enabled"`
	ColsOverride int  `toml:"cols_override"` // 0ならハードウェア報告値を使う
	BurstLen     int  `toml:"burst_len"`     // バーストレポートのペイロード長
}

// MQTTConfig はフレーム配信の設定
type MQTTConfig struct {
	Enabled     bool          `toml:"enabled"`
	Broker      string        `toml:"broker"`
	ClientID    string        `toml:"client_id"`
	TopicPrefix string        `toml:"topic_prefix"`
	Interval    time.Duration `toml:"interval"` // 配信間隔（0なら毎フレーム）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		Devices: DevicesConfig{
			TouchpadEvent: "",
			Hidraw:        "",
		},
		Touch: TouchConfig{
			Source:    "evdev",
			IdleSleep: 2 * time.Millisecond,
		},
		Heatmap: HeatmapConfig{
			Enabled:      false,
			ColsOverride: 0,
			BurstLen:     0,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Broker:      "tcp://localhost:1883",
			ClientID:    "tapview",
			TopicPrefix: "tapview",
			Interval:    200 * time.Millisecond,
		},
	}
}

// LoadConfig は設定ファイルから設定を読み込む
func LoadConfig(configPath string) (*Config, error) {
	// デフォルト設定を用意
	config := DefaultConfig()

	// ファイルが存在しない場合はデフォルト設定を保存して返す
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// 設定ディレクトリの作成
		configDir := filepath.Dir(configPath)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return config, err
		}

		// デフォルト設定の保存
		if err := SaveConfig(configPath, config); err != nil {
			return config, err
		}

		return config, nil
	}

	// 設定ファイルの読み込み
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return config, err
	}

	return config, nil
}

// SaveConfig は設定をTOMLファイルに保存する
func SaveConfig(configPath string, config *Config) error {
	// 設定ディレクトリの作成
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	// ファイルを開く（なければ作成）
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	// TOML形式でエンコードして書き込み
	encoder := toml.NewEncoder(f)
	return encoder.Encode(config)
}

// GetDefaultConfigDir はユーザーの設定ディレクトリを返す
func GetDefaultConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "tapview"), nil
}
