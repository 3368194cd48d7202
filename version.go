// Package cogrun runs the cog code generator against a project's
// CMakeLists.txt and relays its output.
package cogrun

// Version is the cogrun release version.
const Version = "0.1.0"
