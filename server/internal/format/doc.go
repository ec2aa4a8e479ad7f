// Package format renders claimdesk results for the terminal.
//
// Tables are built with go-pretty and come out either as box-drawn ASCII or
// as GitHub-flavoured Markdown. Markdown documents (policy search results,
// claim notes) can be rendered for a terminal with glamour.
package format
