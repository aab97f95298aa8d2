// Package press classifies raw key transitions into semantic events.
//
// For a key that goes down and then up:
//
//	held < threshold:   keyDown, keyUp, singleTap
//	held >= threshold:  keyDown, longPress, keyUp
//
// singleTap needs the matching press to be on record. Press states are
// cleared at startup, so a release whose press happened before a restart
// yields a bare keyUp.
//
// The long-press check re-reads the live key state when its timer fires
// and emits only if the key is still down.
package press
