//go:build framemeter_strict

package core

const strictDefault = true
