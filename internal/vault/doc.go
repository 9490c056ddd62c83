// Package vault stores provider API keys encrypted at rest. Keys are sealed
// with AES-256-GCM under a key derived from the machine identity plus an
// optional user passphrase, so a copied credentials file is useless on
// another machine unless the passphrase path is used.
package vault
