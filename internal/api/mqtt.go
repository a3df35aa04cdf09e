package api

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/JohnAZoidberg/tapview/internal/config"
)

// MQTTPublisher はフレームと接触状態をブローカーへ配信する
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
}

// NewMQTTPublisher はブローカーへ接続してパブリッシャーを作る
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetAutoReconnect(true)

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTTブローカーへの接続に失敗しました: %w", token.Error())
	}

	return &MQTTPublisher{client: c, prefix: cfg.TopicPrefix}, nil
}

// PublishJSON はオブジェクトをJSONにして指定トピックへ配信する
func (p *MQTTPublisher) PublishJSON(topic string, obj interface{}) error {
	msg, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	p.client.Publish(p.prefix+"/"+topic, 0, false, msg)
	return nil
}

// Close はブローカーとの接続を切る
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
