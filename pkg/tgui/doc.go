// Package tgui holds small helpers for composing Telegram HTML messages.
package tgui
