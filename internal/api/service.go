package api

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/JohnAZoidberg/tapview/internal/config"
	"github.com/JohnAZoidberg/tapview/internal/consts"
	"github.com/JohnAZoidberg/tapview/internal/features"
	"github.com/JohnAZoidberg/tapview/internal/heatmap"
	"github.com/JohnAZoidberg/tapview/internal/hid"
)

// framePublisher は配信先ブローカーへの送信能力。実体はMQTTPublisher。
type framePublisher interface {
	PublishJSON(topic string, obj interface{}) error
	Close()
}

// TouchService はタッチデコードサービスを管理する構造体
type TouchService struct {
	cfg          *config.Config
	stopChan     chan struct{}
	running      bool
	statusMutex  sync.RWMutex
	updateConfig chan *config.Config
	verbose      bool
	mqttPub      framePublisher
	lastPublish  time.Time

	latestMutex sync.RWMutex
	latest      *features.TouchState
	loopErr     error
}

// NewTouchService は新しいタッチデコードサービスを作成する
func NewTouchService(cfg *config.Config, verbose bool) *TouchService {
	return &TouchService{
		cfg:          cfg,
		stopChan:     make(chan struct{}),
		running:      false,
		updateConfig: make(chan *config.Config, 1),
		verbose:      verbose,
	}
}

// Start はタッチデコードサービスを開始する
func (s *TouchService) Start() error {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	if s.running {
		return fmt.Errorf("サービスは既に実行中です")
	}

	if s.cfg.MQTT.Enabled && s.mqttPub == nil {
		pub, err := NewMQTTPublisher(s.cfg.MQTT)
		if err != nil {
			return err
		}
		s.mqttPub = pub
	}

	switch s.cfg.Touch.Source {
	case "", "evdev":
		pad, err := features.OpenTouchPad(s.cfg.Devices.TouchpadEvent)
		if err != nil {
			return fmt.Errorf("タッチパッドのオープンに失敗しました[path=%s]: %v", s.cfg.Devices.TouchpadEvent, err)
		}
		s.stopChan = make(chan struct{})
		s.running = true
		go s.runEvdevLoop(pad)

	case "report":
		dev, err := hid.Open(s.cfg.Devices.Hidraw)
		if err != nil {
			return fmt.Errorf("HIDデバイスのオープンに失敗しました[path=%s]: %v", s.cfg.Devices.Hidraw, err)
		}
		reader, ok := dev.(hid.ReportReader)
		if !ok {
			dev.Close()
			return fmt.Errorf("このデバイスは入力レポートの読み出しに対応していません")
		}
		desc, err := hid.ReadDescriptor(s.cfg.Devices.Hidraw)
		if err != nil {
			dev.Close()
			return fmt.Errorf("レポートディスクリプタの読み出しに失敗しました: %v", err)
		}
		decoder := features.NewReportDecoder(hid.ParseReportDescriptor(desc))
		s.stopChan = make(chan struct{})
		s.running = true
		go s.runReportLoop(dev, reader, decoder)

	default:
		return fmt.Errorf("不明なタッチソースです: %s", s.cfg.Touch.Source)
	}

	return nil
}

// Stop はタッチデコードサービスを停止する
func (s *TouchService) Stop() error {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	if !s.running {
		return fmt.Errorf("サービスは実行されていません")
	}

	close(s.stopChan)
	s.running = false

	// デバイスのクローズは各ループ内で行われる

	return nil
}

// UpdateConfig は設定を更新する
func (s *TouchService) UpdateConfig(cfg *config.Config) {
	select {
	case s.updateConfig <- cfg:
		// 設定更新チャネルに送信成功
	default:
		// チャネルがブロックされている場合は古い設定を破棄して新しい設定を送信
		select {
		case <-s.updateConfig:
		default:
		}
		s.updateConfig <- cfg
	}
}

// IsRunning はサービスが実行中かどうかを返す
func (s *TouchService) IsRunning() bool {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.running
}

// Latest は最後に観測した一貫状態のスナップショットを返す
func (s *TouchService) Latest() *features.TouchState {
	s.latestMutex.RLock()
	defer s.latestMutex.RUnlock()
	return s.latest
}

// Err はループが異常終了した場合の終了理由を返す
func (s *TouchService) Err() error {
	s.latestMutex.RLock()
	defer s.latestMutex.RUnlock()
	return s.loopErr
}

func (s *TouchService) setLatest(state *features.TouchState) {
	s.latestMutex.Lock()
	s.latest = state
	s.latestMutex.Unlock()

	if s.mqttPub != nil {
		interval := s.cfg.MQTT.Interval
		if interval <= 0 || time.Since(s.lastPublish) >= interval {
			if err := s.mqttPub.PublishJSON("touch", state); err != nil {
				log.Printf("タッチ状態のMQTT配信に失敗しました: %v", err)
			}
			s.lastPublish = time.Now()
		}
	}
}

// closePublisher はループ終了時にMQTT接続を畳む。次回Startで再接続される。
func (s *TouchService) closePublisher() {
	if s.mqttPub != nil {
		s.mqttPub.Close()
		s.mqttPub = nil
	}
}

func (s *TouchService) setErr(err error) {
	s.latestMutex.Lock()
	s.loopErr = err
	s.latestMutex.Unlock()

	s.statusMutex.Lock()
	s.running = false
	s.statusMutex.Unlock()
}

// runEvdevLoop はevdevイベントを読み続けるメインループ
func (s *TouchService) runEvdevLoop(pad features.TouchPad) {
	defer func() {
		pad.Close()
		s.closePublisher()
		log.Println("タッチデコードサービスを停止しました")
	}()

	machine := features.NewMTStateMachine()
	idleSleep := s.cfg.Touch.IdleSleep
	if idleSleep <= 0 {
		idleSleep = 2 * time.Millisecond
	}

	log.Println("タッチデコードを開始しました...")

	for {
		select {
		case <-s.stopChan:
			return
		default:
			select {
			case newCfg := <-s.updateConfig:
				log.Println("設定を更新しました")
				s.cfg = newCfg
				if s.cfg.Touch.IdleSleep > 0 {
					idleSleep = s.cfg.Touch.IdleSleep
				}
			default:
			}

			ev, ok, err := pad.NextEvent()
			if err != nil {
				log.Printf("入力イベントの読み出しに失敗しました: %v", err)
				s.setErr(err)
				return
			}
			if !ok {
				time.Sleep(idleSleep)
				continue
			}

			if s.verbose {
				log.Println(" ", features.EventString(ev))
			}

			machine.Process(ev)
			if ev.Type == consts.Syn && ev.Code == consts.SynReport {
				s.setLatest(machine.Snapshot())
			}
		}
	}
}

// runReportLoop はHID入力レポートを読み続けるメインループ
func (s *TouchService) runReportLoop(dev hid.Device, reader hid.ReportReader, decoder *features.ReportDecoder) {
	defer func() {
		dev.Close()
		s.closePublisher()
		log.Println("タッチデコードサービスを停止しました")
	}()

	idleSleep := s.cfg.Touch.IdleSleep
	if idleSleep <= 0 {
		idleSleep = 2 * time.Millisecond
	}
	buf := make([]byte, 4096)

	log.Println("タッチデコードを開始しました（レポートモード）...")

	for {
		select {
		case <-s.stopChan:
			return
		default:
			n, err := reader.ReadReport(buf)
			if err != nil {
				log.Printf("入力レポートの読み出しに失敗しました: %v", err)
				s.setErr(err)
				return
			}
			if n == 0 {
				time.Sleep(idleSleep)
				continue
			}

			if state, ok := decoder.Decode(buf[:n]); ok {
				s.setLatest(state)
			}
		}
	}
}

// HeatmapService はヒートマップ取得サービスを管理する構造体
type HeatmapService struct {
	cfg          *config.Config
	stopChan     chan struct{}
	running      bool
	statusMutex  sync.RWMutex
	alcCmds      chan heatmap.AlcCommand
	updateConfig chan *config.Config
	verbose      bool
	mqttPub      framePublisher

	latestMutex sync.RWMutex
	latest      *heatmap.HeatmapFrame
	loopErr     error
}

// NewHeatmapService は新しいヒートマップ取得サービスを作成する
func NewHeatmapService(cfg *config.Config, verbose bool) *HeatmapService {
	return &HeatmapService{
		cfg:          cfg,
		stopChan:     make(chan struct{}),
		running:      false,
		alcCmds:      make(chan heatmap.AlcCommand, 4),
		updateConfig: make(chan *config.Config, 1),
		verbose:      verbose,
	}
}

// Start はヒートマップ取得サービスを開始する
func (s *HeatmapService) Start() error {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	if s.running {
		return fmt.Errorf("サービスは既に実行中です")
	}

	dev, err := hid.Open(s.cfg.Devices.Hidraw)
	if err != nil {
		return fmt.Errorf("HIDデバイスのオープンに失敗しました[path=%s]: %v", s.cfg.Devices.Hidraw, err)
	}

	// バースト長はディスクリプタ由来を基本とし、設定での上書きを許す
	burstLen := s.cfg.Heatmap.BurstLen
	if burstLen <= 0 {
		desc, err := hid.ReadDescriptor(s.cfg.Devices.Hidraw)
		if err != nil {
			dev.Close()
			return fmt.Errorf("レポートディスクリプタの読み出しに失敗しました: %v", err)
		}
		length, ok := hid.BurstReportLength(desc, heatmap.BurstReportID)
		if !ok {
			dev.Close()
			return fmt.Errorf("バーストレポート長をディスクリプタから特定できませんでした")
		}
		burstLen = length
	}

	if s.cfg.MQTT.Enabled {
		pub, err := NewMQTTPublisher(s.cfg.MQTT)
		if err != nil {
			dev.Close()
			return err
		}
		s.mqttPub = pub
	}

	s.stopChan = make(chan struct{})
	s.alcCmds = make(chan heatmap.AlcCommand, 4)
	s.running = true

	frames := make(chan heatmap.HeatmapFrame)
	go s.runAcquisition(dev, burstLen, frames)
	go s.consumeFrames(frames)

	return nil
}

// Stop はヒートマップ取得サービスを停止する
func (s *HeatmapService) Stop() error {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	if !s.running {
		return fmt.Errorf("サービスは実行されていません")
	}

	close(s.stopChan)
	s.running = false

	return nil
}

// IsRunning はサービスが実行中かどうかを返す
func (s *HeatmapService) IsRunning() bool {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.running
}

// UpdateConfig は設定を更新する。デバイスやバースト長の変更は次回Startから反映される
func (s *HeatmapService) UpdateConfig(cfg *config.Config) {
	select {
	case s.updateConfig <- cfg:
		// 設定更新チャネルに送信成功
	default:
		// チャネルがブロックされている場合は古い設定を破棄して新しい設定を送信
		select {
		case <-s.updateConfig:
		default:
		}
		s.updateConfig <- cfg
	}
}

// SendAlcCommand はALC制御コマンドを取得ループへ送る
func (s *HeatmapService) SendAlcCommand(cmd heatmap.AlcCommand) error {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()

	if !s.running {
		return fmt.Errorf("サービスは実行されていません")
	}
	select {
	case s.alcCmds <- cmd:
		return nil
	default:
		return fmt.Errorf("ALCコマンドのキューが一杯です")
	}
}

// Latest は最後に取得したフレームを返す
func (s *HeatmapService) Latest() *heatmap.HeatmapFrame {
	s.latestMutex.RLock()
	defer s.latestMutex.RUnlock()
	return s.latest
}

// Err はループが異常終了した場合の終了理由を返す
func (s *HeatmapService) Err() error {
	s.latestMutex.RLock()
	defer s.latestMutex.RUnlock()
	return s.loopErr
}

// runAcquisition は取得ループを走らせ、終了理由を記録する
func (s *HeatmapService) runAcquisition(dev hid.Device, burstLen int, frames chan<- heatmap.HeatmapFrame) {
	defer func() {
		dev.Close()
		log.Println("ヒートマップ取得サービスを停止しました")
	}()

	streamCfg := heatmap.StreamConfig{
		BurstLen:     burstLen,
		ColsOverride: s.cfg.Heatmap.ColsOverride,
		Verbose:      s.verbose,
	}

	if err := heatmap.Stream(dev, streamCfg, frames, s.alcCmds, s.stopChan); err != nil {
		log.Printf("ヒートマップ取得が異常終了しました: %v", err)

		s.latestMutex.Lock()
		s.loopErr = err
		s.latestMutex.Unlock()

		s.statusMutex.Lock()
		s.running = false
		s.statusMutex.Unlock()
	}
}

// consumeFrames はフレームを受けて最新値の保持とMQTT配信を行う
func (s *HeatmapService) consumeFrames(frames <-chan heatmap.HeatmapFrame) {
	defer func() {
		if s.mqttPub != nil {
			s.mqttPub.Close()
			s.mqttPub = nil
		}
	}()

	var lastPublish time.Time

	for frame := range frames {
		select {
		case newCfg := <-s.updateConfig:
			log.Println("設定を更新しました")
			s.cfg = newCfg
		default:
		}

		f := frame
		s.latestMutex.Lock()
		s.latest = &f
		s.latestMutex.Unlock()

		if s.mqttPub != nil {
			interval := s.cfg.MQTT.Interval
			if interval <= 0 || time.Since(lastPublish) >= interval {
				if err := s.mqttPub.PublishJSON("heatmap", &f); err != nil {
					log.Printf("ヒートマップのMQTT配信に失敗しました: %v", err)
				}
				lastPublish = time.Now()
			}
		}
	}
}
