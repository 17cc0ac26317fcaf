package pca

var Version = "0.1.0"
