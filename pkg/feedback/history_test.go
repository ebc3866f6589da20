package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffEvents_CrossPressAndRelease(t *testing.T) {
	idle := ControllerState{}
	pressed := ControllerState{Buttons: 0x0001}

	events := DiffEvents(idle, pressed)
	if assert.Len(t, events, 1) {
		assert.Equal(t, []byte{0x80, 0x88, 0xff}, events[0])
	}

	events = DiffEvents(pressed, idle)
	if assert.Len(t, events, 1) {
		assert.Equal(t, []byte{0x80, 0x88, 0x00}, events[0])
	}
}

func TestDiffEvents_OptionsUsesDistinctPressReleaseCodes(t *testing.T) {
	idle := ControllerState{}
	pressed := ControllerState{Buttons: 0x1000}

	events := DiffEvents(idle, pressed)
	if assert.Len(t, events, 1) {
		assert.Equal(t, []byte{0x80, 0xac}, events[0])
	}

	events = DiffEvents(pressed, idle)
	if assert.Len(t, events, 1) {
		assert.Equal(t, []byte{0x80, 0x8c}, events[0])
	}
}

func TestDiffEvents_TriggerLevelChange(t *testing.T) {
	prev := ControllerState{L2: 0}
	cur := ControllerState{L2: 200}

	events := DiffEvents(prev, cur)
	if assert.Len(t, events, 1) {
		assert.Equal(t, []byte{0x80, 0x86, 200}, events[0])
	}
}

func TestDiffEvents_NoChangeReturnsNil(t *testing.T) {
	s := ControllerState{Buttons: 0x0003, L2: 10}
	assert.Nil(t, DiffEvents(s, s))
}

func TestDiffEvents_MultipleButtonsInOneTick(t *testing.T) {
	prev := ControllerState{}
	cur := ControllerState{Buttons: 0x0001 | 0x0002}

	events := DiffEvents(prev, cur)
	assert.Len(t, events, 2)
}
