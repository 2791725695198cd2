//go:build volleydebug

package game

const debugAssertions = true
