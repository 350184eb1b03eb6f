// Command holoexport runs the hologram export service and its companion
// maintenance commands.
package main
