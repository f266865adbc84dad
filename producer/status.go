// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import "fmt"

// State is the state of a producer.
type State uint8

const (
	Idle State = iota
	Configured
	Running
	Stopping
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Level is the severity of a status report.
type Level uint8

const (
	LvlOK Level = iota
	LvlWarn
	LvlError
)

func (lvl Level) String() string {
	switch lvl {
	case LvlOK:
		return "OK"
	case LvlWarn:
		return "WARN"
	case LvlError:
		return "ERROR"
	default:
		return fmt.Sprintf("Level(%d)", uint8(lvl))
	}
}

// Status is the last status reported by a producer.
type Status struct {
	Level Level
	Msg   string
}

func (st Status) String() string {
	return fmt.Sprintf("[%v] %s", st.Level, st.Msg)
}

func (p *Producer) setStatus(lvl Level, format string, args ...any) {
	st := Status{Level: lvl, Msg: fmt.Sprintf(format, args...)}
	p.status = st
	switch lvl {
	case LvlOK:
		p.msg.Infof("status: %s", st.Msg)
	case LvlWarn:
		p.msg.Warnf("status: %s", st.Msg)
	default:
		p.msg.Errorf("status: %s", st.Msg)
	}
}
