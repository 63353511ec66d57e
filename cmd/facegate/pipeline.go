package main

import (
	"context"
	"log"
	"os"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/cache"
	"github.com/ayusman/facegate/internal/capture"
	"github.com/ayusman/facegate/internal/detector"
	"github.com/ayusman/facegate/internal/notify"
	"github.com/ayusman/facegate/internal/plugin"
	"github.com/ayusman/facegate/internal/render"
	"github.com/ayusman/facegate/internal/server"
)

// pipeline is a wired App with its optional outputs.
type pipeline struct {
	app     *app.App
	overlay *render.Overlay
	hub     *server.DetectionsHub
	cache   *cache.DescriptorCache
	mqtt    *notify.MQTTNotifier
	hooks   *plugin.HookNotifier
}

// connectCache returns the descriptor cache, or nil when redis is not
// configured or unreachable.
func connectCache() *cache.DescriptorCache {
	if cfg.Redis.Addr == "" {
		return nil
	}
	c, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
	if err != nil {
		log.Printf("descriptor cache disabled: %v", err)
		return nil
	}
	return c
}

// newPipeline wires camera, detector, sinks and notifiers. With ui set the
// overlay and the detections hub are attached for the web interface.
func newPipeline(ctx context.Context, ui bool) *pipeline {
	p := &pipeline{cache: connectCache()}

	notifiers := notify.Multi{notify.LogNotifier{}}
	var sinks []render.Sink

	if ui {
		p.overlay = render.NewOverlay(cfg.Camera.Mirror)
		p.hub = server.NewDetectionsHub()
		sinks = append(sinks, p.overlay, p.hub)
		notifiers = append(notifiers, p.hub)
	}

	if cfg.MQTT.Broker != "" {
		m := notify.NewMQTTNotifier(notify.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		})
		if err := m.Connect(ctx); err != nil {
			log.Printf("mqtt disabled: %v", err)
		} else {
			p.mqtt = m
			notifiers = append(notifiers, m)
		}
	}

	if cfg.Plugins.Dir != "" {
		if _, err := os.Stat(cfg.Plugins.Dir); err == nil {
			manager := plugin.NewManager(cfg.Plugins.Dir)
			if err := manager.Discover(); err != nil {
				log.Printf("plugin discovery: %v", err)
			} else if len(manager.List()) > 0 {
				log.Printf("loaded %d plugins from %s", len(manager.List()), cfg.Plugins.Dir)
				p.hooks = plugin.NewHookNotifier(manager, plugin.NewExecutor(cfg.Plugins.Timeout))
				notifiers = append(notifiers, p.hooks)
			}
		}
	}

	det, err := detector.New(detector.Config{
		Backend:  cfg.Detector.Backend,
		Python:   cfg.Detector.Python,
		Script:   cfg.Detector.Script,
		ModelDir: cfg.Detector.ModelDir,
	})
	if err != nil {
		log.Printf("detector: %v (model loading will be retried)", err)
	}

	var camera capture.Camera
	if cfg.Camera.DeviceID < 0 {
		log.Printf("camera device %d: using a synthetic test pattern", cfg.Camera.DeviceID)
		camera = capture.NewTestPatternCamera(cfg.Camera.Width, cfg.Camera.Height)
	} else {
		camera = capture.NewCamera(capture.Device{
			ID:     cfg.Camera.DeviceID,
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
		})
	}

	p.app = app.New(app.Config{
		Settings: cfg,
		Store:    db,
		Cache:    p.cache,
		Source:   capture.NewCameraSource(camera),
		Detector: det,
		Sinks:    sinks,
		Notifier: notifiers,
	})
	return p
}

// Close stops the app and releases the outputs.
func (p *pipeline) Close() {
	if err := p.app.Close(); err != nil {
		log.Printf("close detector: %v", err)
	}
	if p.hooks != nil {
		p.hooks.Wait()
	}
	if p.mqtt != nil {
		p.mqtt.Disconnect()
	}
	if p.cache != nil {
		p.cache.Close()
	}
}
