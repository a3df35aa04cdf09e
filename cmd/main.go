package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/browser"

	"github.com/JohnAZoidberg/tapview/internal/api"
	"github.com/JohnAZoidberg/tapview/internal/config"
)

func main() {
	// コマンドライン引数の解析
	useApi := flag.Bool("api", false, "APIサーバーモードで起動します")
	configPath := flag.String("config", "", "設定ファイルのパス (指定しない場合はデフォルトパスを使用)")
	port := flag.Int("port", 8080, "APIサーバーのポート番号")
	openBrowser := flag.Bool("open", false, "起動後にブラウザでAPIを開きます")
	device := flag.String("device", "", "タッチパッドのevdevデバイスパス (例: /dev/input/event5)")
	hidrawPath := flag.String("hidraw", "", "hidrawデバイスパス (例: /dev/hidraw2)")
	useHeatmap := flag.Bool("heatmap", false, "ヒートマップ取得を有効にします")
	heatmapCols := flag.Int("heatmap-cols", 0, "ヒートマップの表示列数を上書きします")
	verbose := flag.Bool("verbose", false, "受信イベントを逐次表示します")
	flag.Parse()

	// デフォルト設定ファイルパスの設定
	defaultConfigPath := ""
	configDir, err := config.GetDefaultConfigDir()
	if err == nil {
		defaultConfigPath = filepath.Join(configDir, "config.toml")
	}

	// 設定ファイルパスの決定
	cfgPath := defaultConfigPath
	if *configPath != "" {
		cfgPath = *configPath
	}

	// 設定ファイルの読み込み
	var cfg *config.Config
	if cfgPath != "" {
		cfg, err = config.LoadConfig(cfgPath)
		if err != nil {
			fmt.Printf("設定ファイルの読み込みに失敗しました: %v\nデフォルト設定を使用します\n", err)
			cfg = config.DefaultConfig()
		} else {
			fmt.Printf("設定ファイルを読み込みました: %s\n", cfgPath)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// コマンドライン引数は設定ファイルより優先する
	if *device != "" {
		cfg.Devices.TouchpadEvent = *device
	}
	if *hidrawPath != "" {
		cfg.Devices.Hidraw = *hidrawPath
	}
	if *useHeatmap {
		cfg.Heatmap.Enabled = true
	}
	if *heatmapCols > 0 {
		cfg.Heatmap.ColsOverride = *heatmapCols
	}

	// シグナルハンドラの設定
	handleSignals()

	// APIモードかCLIモードかを判断
	if *useApi {
		// APIモードで実行
		fmt.Printf("APIサーバーモードで起動します (ポート: %d)...\n", *port)
		runApiServer(cfg, cfgPath, *port, *openBrowser, *verbose)
	} else {
		// CLIモードで実行
		fmt.Println("CLIモードで起動します...")
		runCLI(cfg, *verbose)
	}
}

// APIサーバーモードでの実行
func runApiServer(cfg *config.Config, cfgPath string, port int, openBrowser, verbose bool) {
	// APIサーバーを作成
	server := api.NewServer(cfg, port, verbose)

	// 設定ファイルの変更を監視して反映する
	if cfgPath != "" {
		watcher, err := config.WatchConfig(cfgPath, func(newCfg *config.Config) {
			log.Println("設定ファイルの変更を検出しました")
			server.UpdateConfig(newCfg)
		})
		if err != nil {
			log.Printf("設定ファイルの監視を開始できませんでした: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	if openBrowser {
		go func() {
			url := fmt.Sprintf("http://localhost:%d/api/health", port)
			if err := browser.OpenURL(url); err != nil {
				log.Printf("ブラウザを開けませんでした: %v", err)
			}
		}()
	}

	// サーバー起動
	if err := server.Start(); err != nil {
		log.Fatalf("APIサーバーの起動に失敗しました: %v", err)
	}
}

// CLIモードでの実行
func runCLI(cfg *config.Config, verbose bool) {
	started := false

	if cfg.Devices.TouchpadEvent != "" || cfg.Touch.Source == "report" {
		service := api.NewTouchService(cfg, verbose)
		if err := service.Start(); err != nil {
			fmt.Printf("タッチデコードサービスの起動に失敗しました: %v\n", err)
			os.Exit(1)
		}
		started = true
	}

	if cfg.Heatmap.Enabled {
		if cfg.Devices.Hidraw == "" {
			fmt.Println("ヒートマップ取得にはhidrawデバイスパスが必要です (-hidraw)")
			os.Exit(1)
		}
		service := api.NewHeatmapService(cfg, verbose)
		if err := service.Start(); err != nil {
			fmt.Printf("ヒートマップ取得サービスの起動に失敗しました: %v\n", err)
			os.Exit(1)
		}
		started = true
	}

	if !started {
		fmt.Println("起動するサービスがありません。-device か -heatmap を指定してください")
		os.Exit(1)
	}

	// シグナルが来るまで待機（終了処理はhandleSignals内で行われる）
	select {}
}

func handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("シャットダウンします...")
		os.Exit(0)
	}()
}
