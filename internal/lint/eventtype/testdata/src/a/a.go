package a

import "github.com/indigauge/indigauge-go/pkg/indigauge"

const levelDone = "level.done"

var crashType = indigauge.MustEventType("game.crash")
var badType = indigauge.MustEventType("game") // want `invalid event type "game": must contain one '.'`

func events(c *indigauge.Client, dynamic string) {
	indigauge.Info("game.start", nil)
	indigauge.Info(levelDone, nil)
	indigauge.Info(dynamic, nil)
	indigauge.Info("gamestart", nil)          // want `must contain one '.'`
	indigauge.Error("game.over.now", nil)     // want `multiple '.' found`
	indigauge.Emit("info", "game_start", nil)  // want `only letters`
	indigauge.Emit("info", "game.start", nil)

	c.Info(".start", nil)            // want `cannot be the first or last`
	c.Warn("ui.click", nil)
	c.Emit("warn", "ui.click1", nil) // want `only letters`

	_ = crashType
	_ = badType
}

func other() {
	Info("nodot")
}

func Info(s string) {}
