// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irqdisp

import (
	"crypto/tls"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	mail "gopkg.in/gomail.v2"
)

// alertGate fires fn once per cause the first time its running count
// crosses threshold within an unresolved burst; Reset lets a fresh burst
// page again after the operator has cleared the condition.
type alertGate struct {
	threshold uint64
	fn        func(cause Cause, count uint64)

	mu    sync.Mutex
	fired map[Cause]bool
}

func newAlertGate(threshold uint64, fn func(Cause, uint64)) *alertGate {
	return &alertGate{threshold: threshold, fn: fn, fired: make(map[Cause]bool)}
}

func (g *alertGate) observe(cause Cause, count uint64) {
	g.mu.Lock()
	if count < g.threshold || g.fired[cause] {
		g.mu.Unlock()
		return
	}
	g.fired[cause] = true
	g.mu.Unlock()

	if g.fn != nil {
		g.fn(cause, count)
	}
}

// reset clears cause's fired latch, letting the next burst page again.
func (g *alertGate) reset(cause Cause) {
	g.mu.Lock()
	delete(g.fired, cause)
	g.mu.Unlock()
}

var (
	alertMailUsr  = os.Getenv("MRF_MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MRF_MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MRF_MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MRF_MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MRF_MAIL_TGTS"), ",")
)

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// WithAlerting wires WithAlertHook to page an operator by mail once cause
// has fired threshold times in a burst: repeated RXErr (link flapping) or
// FIFOFull (a stuck subscriber) bursts are exactly the conditions a shift
// crew needs paged rather than left to a log line.
func WithAlerting(cardName string, threshold uint64) Option {
	return WithAlertHook(threshold, func(cause Cause, count uint64) {
		sendAlertMail(cardName, cause, count)
	})
}

func sendAlertMail(cardName string, cause Cause, count uint64) {
	if alertMailUsr == "" || alertMailPwd == "" || alertMailSrv == "" ||
		alertMailPort == 0 || len(alertMailTgts) == 0 {
		log.Printf("irqdisp: %s: %s fired %d times, no mail alert configured", cardName, cause, count)
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[mrfctl] %s: %s burst on %s", cardName, cause, cardName))
	msg.SetBody("text/plain", fmt.Sprintf("card: %s\ncause: %s\ncount: %d", cardName, cause, count))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	if err := dial.DialAndSend(msg); err != nil {
		log.Printf("irqdisp: could not send mail alert: %+v", err)
	}
}
