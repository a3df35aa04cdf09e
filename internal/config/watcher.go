package config

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher は設定ファイルの変更を監視して再読み込みを通知する
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(*Config)
	stopChan chan struct{}
}

// WatchConfig は設定ファイルの監視を開始する。変更が落ち着いてから
// 再読み込みするため、連続イベントは500msのデバウンスでまとめる
func WatchConfig(configPath string, onChange func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("設定ファイル監視の初期化に失敗しました: %w", err)
	}

	// エディタの保存はrename+createで来ることがあるため、
	// ファイルではなくディレクトリを監視する
	if err := fsw.Add(filepath.Dir(configPath)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("設定ディレクトリの監視に失敗しました: %w", err)
	}

	w := &Watcher{
		watcher:  fsw,
		path:     configPath,
		onChange: onChange,
		stopChan: make(chan struct{}),
	}
	go w.watchEvents()

	return w, nil
}

// Close は監視を停止する
func (w *Watcher) Close() error {
	close(w.stopChan)
	return w.watcher.Close()
}

// watchEvents はfsnotifyのイベントを監視する
func (w *Watcher) watchEvents() {
	var debounce *time.Timer
	debounceCh := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, func() {
				select {
				case debounceCh <- struct{}{}:
				default:
				}
			})

		case <-debounceCh:
			cfg, err := LoadConfig(w.path)
			if err != nil {
				log.Printf("設定ファイルの再読み込みに失敗しました: %v", err)
				continue
			}
			w.onChange(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("設定ファイル監視でエラーが発生しました: %v", err)

		case <-w.stopChan:
			return
		}
	}
}
