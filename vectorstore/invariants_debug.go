//go:build vecachedebug

package vectorstore

const debugInvariants = true
