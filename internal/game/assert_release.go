//go:build !volleydebug

package game

const debugAssertions = false
