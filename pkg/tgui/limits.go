package tgui

// MaxMessageLen is Telegram's text limit for one message, in runes.
const MaxMessageLen = 4096
