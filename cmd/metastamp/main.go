// Package main 启动应用程序
package main

import "github.com/Christebob/Meta-Stamp-V3-sub000/pkg/cmd"

func main() {
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
