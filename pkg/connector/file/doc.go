// Package file implements a connector whose remote is a plain directory,
// typically a synced folder or a git checkout shared between machines.
package file
