// Package threat defines the submissions SafeClick analyzes and the records it produces.
package threat
