package app

// Name is the human-readable application name.
const Name = "Awesome Vehicle Builder"

// DirName names the per-user directory holding application files.
const DirName = "avb"
