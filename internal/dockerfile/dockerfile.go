package dockerfile

import (
	"os"
	"path/filepath"
)

const FileName = "Dockerfile"

// Default descriptor for Node.js apps. The manifest is copied before the
// rest of the sources so the dependency layer stays cached across builds.
const Default = `FROM node:16
WORKDIR /app
COPY package*.json ./
RUN npm install
COPY . .
EXPOSE 3000
CMD ["npm", "start"]
`

// Ensure makes sure a Dockerfile exists in contextDir, writing the
// default one when absent. An existing Dockerfile is authoritative and
// is never touched. Returns the descriptor path and whether it was
// created by this call.
func Ensure(contextDir string) (string, bool, error) {
	path := filepath.Join(contextDir, FileName)

	_, err := os.Stat(path)
	if err == nil {
		return path, false, nil
	}
	if !os.IsNotExist(err) {
		return "", false, err
	}

	err = os.WriteFile(path, []byte(Default), 0644)
	if err != nil {
		return "", false, err
	}

	return path, true, nil
}
