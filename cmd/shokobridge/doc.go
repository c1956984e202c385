// Command shokobridge reconciles a Shoko-managed media collection into a
// Plex-scannable directory layout.
package main
