// facecam - live webcam face detection with landmark and expression overlay
package main

func main() {
	Execute()
}
