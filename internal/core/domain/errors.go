package domain

import "errors"

var (
	ErrConsultationNotFound   = errors.New("consultation not found")
	ErrRoomNotFound           = errors.New("room not found")
	ErrChannelClosed          = errors.New("signal channel closed")
	ErrRecordingNotActive     = errors.New("recording not active")
	ErrRecordingAlreadyActive = errors.New("recording already active")
)
