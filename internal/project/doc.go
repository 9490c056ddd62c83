// Package project saves and loads the queue as a portable JSON document so
// work can move between machines or survive a cleared database. The schema
// version is checked before anything else is decoded.
package project
