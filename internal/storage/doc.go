package storage

// Package storage persists the bot's tracking state:
//   - (account, chat) mappings with per-destination customization fields
//   - the set of post IDs that have already been announced
