package services

import (
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-booking/realtime"
	"github.com/yeremiapane/restaurant-booking/utils"
)

// emit delivers an event and only logs failures: the write that triggered it
// has already succeeded.
func emit(b realtime.Broadcaster, room, event string, payload interface{}) {
	if b == nil {
		return
	}
	if err := b.EmitToRoom(room, event, payload); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"room":  room,
			"event": event,
			"error": err,
		}).Warn("broadcast failed")
	}
}
