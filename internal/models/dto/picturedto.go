package dto

type UploadProfilePicResponseDTO struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}
