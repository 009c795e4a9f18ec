// Package sheets registers the built-in sheet definitions with the core registry.
// Import this package to ensure all sheets are registered.
package sheets

// Each sheet file uses init() to register its sheets.
