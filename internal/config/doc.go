// SPDX-License-Identifier: MIT

// Package config loads generator settings with the precedence
// flags > SONGGEN_* environment > YAML file > defaults, and keeps the
// running value in a Holder that follows file edits.
package config
